package posting

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gallery/service/internal/middleware"
)

func requireValidation(t *testing.T, err error, field string) *ValidationError {
	t.Helper()
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Contains(t, ve.Fields, field, "fields: %v", ve.Fields)
	return ve
}

func TestCreatePosting_StoresEveryImage(t *testing.T) {
	for _, n := range []int{1, 3, MaxImagesPerRequest} {
		t.Run(fmt.Sprintf("%d images", n), func(t *testing.T) {
			f := newFixture(t)

			p, err := f.svc.CreatePosting(context.Background(), CreateInput{
				Title:  "Holiday",
				Images: pngUploads(n),
			})
			require.NoError(t, err)
			require.Len(t, p.Images, n)
			assert.Equal(t, n, f.store.imageCount())
			assert.Equal(t, n, f.objects.count())

			for i, img := range p.Images {
				require.NotNil(t, img.PostingID)
				assert.Equal(t, p.ID, *img.PostingID)
				assert.Equal(t, fmt.Sprintf("img-%d.png", i), img.OriginalName)
				assert.Equal(t, img.OriginalName, img.Title)
				assert.Empty(t, img.Description)
				assert.Equal(t, "image/png", img.MimeType)
				assert.True(t, f.objects.has(img.Path))
				assert.NotEmpty(t, img.URL)
			}
		})
	}
}

func TestCreatePosting_TripExample(t *testing.T) {
	f := newFixture(t)

	p, err := f.svc.CreatePosting(context.Background(), CreateInput{
		Title:       "Trip",
		Description: "",
		Images:      []Upload{upload("a.jpg", fileOf(jpegMagic, 2*1024*1024))},
	})
	require.NoError(t, err)

	require.Len(t, p.Images, 1)
	img := p.Images[0]
	assert.Equal(t, "Trip", p.Title)
	assert.Equal(t, "a.jpg", img.OriginalName)
	assert.Equal(t, "image/jpeg", img.MimeType)
	assert.Equal(t, int64(2*1024*1024), img.Size)
	assert.Regexp(t, regexp.MustCompile(fmt.Sprintf(`^images/posting-%d/\d+_[0-9a-f]{8}_a\.jpg$`, p.ID)), img.Path)
	assert.Equal(t, 1, f.objects.count())
}

func TestCreatePosting_TrimsText(t *testing.T) {
	f := newFixture(t)

	p, err := f.svc.CreatePosting(context.Background(), CreateInput{
		Title:       "  Trip  ",
		Description: "\tbeach\n",
		Images:      pngUploads(1),
	})
	require.NoError(t, err)
	assert.Equal(t, "Trip", p.Title)
	assert.Equal(t, "beach", p.Description)
}

func TestCreatePosting_ValidationCreatesNothing(t *testing.T) {
	tests := []struct {
		name  string
		in    CreateInput
		field string
		msg   string
	}{
		{
			name:  "no images",
			in:    CreateInput{Title: "Trip"},
			field: "images",
			msg:   "At least one image is required.",
		},
		{
			name:  "too many images",
			in:    CreateInput{Title: "Trip", Images: pngUploads(MaxImagesPerRequest + 1)},
			field: "images",
			msg:   "Maximum 10 images allowed per posting.",
		},
		{
			name:  "image over 5MB",
			in:    CreateInput{Title: "Trip", Images: []Upload{{Filename: "big.jpg", Size: MaxImageSize + 1}}},
			field: "images.0",
			msg:   "Each image may not be greater than 5MB.",
		},
		{
			name:  "not an image",
			in:    CreateInput{Title: "Trip", Images: []Upload{upload("notes.jpg", []byte("just some text"))}},
			field: "images.0",
			msg:   "Each file must be an image.",
		},
		{
			name:  "disallowed image type",
			in:    CreateInput{Title: "Trip", Images: []Upload{upload("scan.bmp", fileOf(bmpMagic, 64))}},
			field: "images.0",
			msg:   "Images must be in JPEG, PNG, GIF, or WebP format.",
		},
		{
			name:  "second file invalid",
			in:    CreateInput{Title: "Trip", Images: []Upload{pngUploads(1)[0], upload("b.txt", []byte("text"))}},
			field: "images.1",
			msg:   "Each file must be an image.",
		},
		{
			name:  "missing title",
			in:    CreateInput{Title: "   ", Images: pngUploads(1)},
			field: "title",
			msg:   "The title field is required.",
		},
		{
			name:  "title too long",
			in:    CreateInput{Title: strings.Repeat("t", MaxTitleLength+1), Images: pngUploads(1)},
			field: "title",
			msg:   "The title may not be greater than 255 characters.",
		},
		{
			name:  "description too long",
			in:    CreateInput{Title: "Trip", Description: strings.Repeat("d", MaxDescriptionLength+1), Images: pngUploads(1)},
			field: "description",
			msg:   "The description may not be greater than 5000 characters.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			_, err := f.svc.CreatePosting(context.Background(), tt.in)
			ve := requireValidation(t, err, tt.field)
			assert.Contains(t, ve.Fields[tt.field], tt.msg)

			assert.Zero(t, f.store.postingCount())
			assert.Zero(t, f.store.imageCount())
			assert.Zero(t, f.objects.count())
		})
	}
}

func TestCreatePosting_AcceptsEveryAllowedType(t *testing.T) {
	f := newFixture(t)

	p, err := f.svc.CreatePosting(context.Background(), CreateInput{
		Title: "Mixed",
		Images: []Upload{
			upload("a.jpg", fileOf(jpegMagic, 100)),
			upload("b.png", fileOf(pngMagic, 100)),
			upload("c.gif", fileOf(gifMagic, 100)),
			upload("d.webp", fileOf(webpMagic, 100)),
		},
	})
	require.NoError(t, err)

	var types []string
	for _, img := range p.Images {
		types = append(types, img.MimeType)
	}
	assert.Equal(t, []string{"image/jpeg", "image/png", "image/gif", "image/webp"}, types)
}

func TestCreatePosting_RowFailureRollsBackAndLogsUploadedKeys(t *testing.T) {
	f := newFixture(t)
	f.store.fail["CreateImage"] = errBoom

	_, err := f.svc.CreatePosting(context.Background(), CreateInput{Title: "Trip", Images: pngUploads(1)})
	require.ErrorIs(t, err, errBoom)

	assert.Zero(t, f.store.postingCount())
	assert.Zero(t, f.store.imageCount())
	// The uploaded object is not retracted; its key is logged for cleanup.
	assert.Equal(t, 1, f.objects.count())
	assert.Contains(t, f.logs.String(), "posting creation failed")
	assert.Contains(t, f.logs.String(), "images/posting-1/")
}

func TestCreatePosting_StorageFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.objects.fail["Upload"] = errBoom

	_, err := f.svc.CreatePosting(context.Background(), CreateInput{Title: "Trip", Images: pngUploads(2)})
	require.ErrorIs(t, err, errBoom)
	assert.Zero(t, f.store.postingCount())
	assert.Zero(t, f.objects.count())
}

func TestUpdatePosting_DeletesThenAdds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.CreatePosting(ctx, CreateInput{Title: "Trip", Images: pngUploads(3)})
	require.NoError(t, err)
	removed := p.Images[:2]
	kept := p.Images[2]

	updated, err := f.svc.UpdatePosting(ctx, p.ID, UpdateInput{
		Title:          "Trip 2",
		Description:    "updated",
		Images:         []Upload{upload("new.gif", fileOf(gifMagic, 100))},
		DeleteImageIDs: ImageIDs(removed),
	})
	require.NoError(t, err)

	assert.Equal(t, "Trip 2", updated.Title)
	assert.Equal(t, "updated", updated.Description)
	require.Len(t, updated.Images, 3-2+1)
	assert.Equal(t, kept.ID, updated.Images[0].ID)
	assert.Equal(t, "new.gif", updated.Images[1].OriginalName)

	for _, img := range removed {
		assert.False(t, f.objects.has(img.Path))
	}
	assert.True(t, f.objects.has(kept.Path))
	assert.Equal(t, 2, f.objects.count())
	assert.Equal(t, 2, f.store.imageCount())
}

func TestUpdatePosting_ScalarsOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.CreatePosting(ctx, CreateInput{Title: "Trip", Images: pngUploads(2)})
	require.NoError(t, err)

	updated, err := f.svc.UpdatePosting(ctx, p.ID, UpdateInput{Title: "Renamed"})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Len(t, updated.Images, 2)
	assert.Equal(t, 2, f.objects.count())
}

func TestUpdatePosting_RejectsUnknownAndForeignImages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mine, err := f.svc.CreatePosting(ctx, CreateInput{Title: "Mine", Images: pngUploads(1)})
	require.NoError(t, err)
	theirs, err := f.svc.CreatePosting(ctx, CreateInput{Title: "Theirs", Images: pngUploads(1)})
	require.NoError(t, err)

	_, err = f.svc.UpdatePosting(ctx, mine.ID, UpdateInput{
		Title:          "Changed",
		DeleteImageIDs: []int64{theirs.Images[0].ID, 999},
		Images:         pngUploads(1),
	})
	ve := requireValidation(t, err, "delete_images.0")
	assert.Equal(t, []string{"The selected image does not belong to this posting."}, ve.Fields["delete_images.0"])
	assert.Equal(t, []string{"One or more selected images do not exist."}, ve.Fields["delete_images.1"])

	got, err := f.svc.GetPosting(ctx, mine.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mine", got.Title)
	assert.Len(t, got.Images, 1)
	assert.Equal(t, 2, f.store.imageCount())
	assert.Equal(t, 2, f.objects.count())
}

func TestUpdatePosting_FormErrorsJoinFieldChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.CreatePosting(ctx, CreateInput{Title: "Trip", Images: pngUploads(1)})
	require.NoError(t, err)

	formErrs := &ValidationError{}
	formErrs.add("delete_images.0", "One or more selected images do not exist.")
	_, err = f.svc.UpdatePosting(ctx, p.ID, UpdateInput{
		Title:      strings.Repeat("x", 256),
		Images:     []Upload{upload("notes.bmp", fileOf(bmpMagic, 64))},
		FormErrors: formErrs,
	})

	ve := requireValidation(t, err, "delete_images.0")
	assert.Contains(t, ve.Fields, "title")
	assert.Contains(t, ve.Fields, "images.0")
	assert.Len(t, formErrs.Fields, 1)

	got, err := f.svc.GetPosting(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Trip", got.Title)
}

func TestUpdatePosting_DuplicateDeleteIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.CreatePosting(ctx, CreateInput{Title: "Trip", Images: pngUploads(2)})
	require.NoError(t, err)

	id := p.Images[0].ID
	updated, err := f.svc.UpdatePosting(ctx, p.ID, UpdateInput{Title: "Trip", DeleteImageIDs: []int64{id, id}})
	require.NoError(t, err)
	assert.Len(t, updated.Images, 1)
}

func TestUpdatePosting_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.UpdatePosting(context.Background(), 42, UpdateInput{Title: "Nope"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, f.logs.String())
}

func TestUpdatePosting_ObjectDeleteFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.CreatePosting(ctx, CreateInput{Title: "Trip", Images: pngUploads(2)})
	require.NoError(t, err)
	f.objects.fail["DeleteMany"] = errBoom

	_, err = f.svc.UpdatePosting(ctx, p.ID, UpdateInput{Title: "Changed", DeleteImageIDs: []int64{p.Images[0].ID}})
	require.ErrorIs(t, err, errBoom)

	got, err := f.svc.GetPosting(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Trip", got.Title)
	assert.Len(t, got.Images, 2)
	assert.Contains(t, f.logs.String(), "posting update failed")
	assert.Contains(t, f.logs.String(), fmt.Sprintf("posting_id=%d", p.ID))
}

func TestAddImages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.CreatePosting(ctx, CreateInput{Title: "Trip", Images: pngUploads(1)})
	require.NoError(t, err)

	added, err := f.svc.AddImages(ctx, p.ID, []Upload{upload("more.webp", fileOf(webpMagic, 64))})
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.Equal(t, "image/webp", added[0].MimeType)

	got, err := f.svc.GetPosting(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, got.Images, 2)
}

func TestAddImages_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.CreatePosting(ctx, CreateInput{Title: "Trip", Images: pngUploads(1)})
	require.NoError(t, err)

	_, err = f.svc.AddImages(ctx, p.ID, nil)
	requireValidation(t, err, "images")

	_, err = f.svc.AddImages(ctx, p.ID, pngUploads(MaxImagesPerRequest+1))
	ve := requireValidation(t, err, "images")
	assert.Equal(t, []string{"Maximum 10 images allowed per request."}, ve.Fields["images"])

	_, err = f.svc.AddImages(ctx, 999, pngUploads(1))
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 1, f.store.imageCount())
	assert.Equal(t, 1, f.objects.count())
}

func TestDeletePosting_RemovesRowsAndObjects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doomed, err := f.svc.CreatePosting(ctx, CreateInput{Title: "Doomed", Images: pngUploads(3)})
	require.NoError(t, err)
	sibling, err := f.svc.CreatePosting(ctx, CreateInput{Title: "Sibling", Images: pngUploads(2)})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeletePosting(ctx, doomed.ID))

	_, err = f.svc.GetPosting(ctx, doomed.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	for _, img := range doomed.Images {
		assert.False(t, f.objects.has(img.Path))
		_, err := f.svc.GetImage(ctx, img.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	}

	got, err := f.svc.GetPosting(ctx, sibling.ID)
	require.NoError(t, err)
	assert.Len(t, got.Images, 2)
	assert.Equal(t, 2, f.objects.count())
}

func TestDeletePosting_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.DeletePosting(ctx, 7), ErrNotFound)

	p, err := f.svc.CreatePosting(ctx, CreateInput{Title: "Trip", Images: pngUploads(2)})
	require.NoError(t, err)
	f.store.fail["DeletePosting"] = errBoom

	require.ErrorIs(t, f.svc.DeletePosting(ctx, p.ID), errBoom)
	assert.Equal(t, 1, f.store.postingCount())
	assert.Equal(t, 2, f.store.imageCount())
	assert.Contains(t, f.logs.String(), "posting deletion failed")
}

func TestFailureLogCarriesTokenSubject(t *testing.T) {
	f := newFixture(t)
	ctx := context.WithValue(context.Background(), middleware.SubjectKey, "ops")

	f.store.fail["CreatePosting"] = errBoom
	_, err := f.svc.CreatePosting(ctx, CreateInput{Title: "Trip", Images: pngUploads(1)})
	require.ErrorIs(t, err, errBoom)
	assert.Contains(t, f.logs.String(), "subject=ops")
}

func TestDeleteImage_RemovesOnlyThatImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.CreatePosting(ctx, CreateInput{Title: "Trip", Images: pngUploads(3)})
	require.NoError(t, err)
	target := p.Images[1]

	require.NoError(t, f.svc.DeleteImage(ctx, target.ID))

	assert.False(t, f.objects.has(target.Path))
	assert.True(t, f.objects.has(p.Images[0].Path))
	assert.True(t, f.objects.has(p.Images[2].Path))

	got, err := f.svc.GetPosting(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{p.Images[0].ID, p.Images[2].ID}, ImageIDs(got.Images))

	assert.ErrorIs(t, f.svc.DeleteImage(ctx, target.ID), ErrNotFound)
}

func TestDeletePostingImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.CreatePosting(ctx, CreateInput{Title: "Trip", Images: pngUploads(2)})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeletePostingImage(ctx, p.ID, p.Images[0].ID))
	assert.False(t, f.objects.has(p.Images[0].Path))
	assert.Equal(t, 1, f.store.imageCount())
}

func TestCreatePosting_DuplicateFilenamesGetDistinctObjects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.CreatePosting(ctx, CreateInput{
		Title: "Phone dump",
		Images: []Upload{
			upload("image.jpg", fileOf(jpegMagic, 512)),
			upload("image.jpg", fileOf(jpegMagic, 1024)),
		},
	})
	require.NoError(t, err)
	require.Len(t, p.Images, 2)
	assert.NotEqual(t, p.Images[0].Path, p.Images[1].Path)
	assert.Equal(t, 2, f.objects.count())

	require.NoError(t, f.svc.DeletePostingImage(ctx, p.ID, p.Images[0].ID))
	assert.False(t, f.objects.has(p.Images[0].Path))
	assert.True(t, f.objects.has(p.Images[1].Path))
}

func TestDeleteImage_MissingObjectStillRemovesRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.CreatePosting(ctx, CreateInput{Title: "Trip", Images: pngUploads(2)})
	require.NoError(t, err)
	f.objects.drop(p.Images[0].Path)

	require.NoError(t, f.svc.DeletePostingImage(ctx, p.ID, p.Images[0].ID))
	_, err = f.svc.GetImage(ctx, p.Images[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, f.objects.has(p.Images[1].Path))

	f.objects.drop(p.Images[1].Path)
	require.NoError(t, f.svc.DeletePosting(ctx, p.ID))
	assert.Equal(t, 0, f.store.postingCount())
	assert.Equal(t, 0, f.store.imageCount())
	assert.NotContains(t, f.logs.String(), "level=ERROR")
}

func TestDeletePostingImage_MismatchIsRejectedWithoutMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.CreatePosting(ctx, CreateInput{Title: "A", Images: pngUploads(1)})
	require.NoError(t, err)
	b, err := f.svc.CreatePosting(ctx, CreateInput{Title: "B", Images: pngUploads(1)})
	require.NoError(t, err)
	loose, err := f.svc.UploadImage(ctx, UploadInput{Title: "Loose", Image: &pngUploads(1)[0]})
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.DeletePostingImage(ctx, a.ID, b.Images[0].ID), ErrForbidden)
	assert.ErrorIs(t, f.svc.DeletePostingImage(ctx, a.ID, loose.ID), ErrForbidden)
	assert.ErrorIs(t, f.svc.DeletePostingImage(ctx, 999, b.Images[0].ID), ErrNotFound)

	assert.Equal(t, 3, f.store.imageCount())
	assert.Equal(t, 3, f.objects.count())
	assert.NotContains(t, f.logs.String(), "level=ERROR")
}

func TestDeleteAllPostingImages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.CreatePosting(ctx, CreateInput{Title: "Trip", Images: pngUploads(4)})
	require.NoError(t, err)

	n, err := f.svc.DeleteAllPostingImages(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	got, err := f.svc.GetPosting(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Images)
	assert.NotNil(t, got.Images)
	assert.Zero(t, f.objects.count())

	n, err = f.svc.DeleteAllPostingImages(ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = f.svc.DeleteAllPostingImages(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUploadImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := upload("cat.png", fileOf(pngMagic, 512))
	img, err := f.svc.UploadImage(ctx, UploadInput{Title: "Cat", Description: "sleepy", Image: &in})
	require.NoError(t, err)

	assert.Nil(t, img.PostingID)
	assert.Equal(t, "Cat", img.Title)
	assert.Equal(t, "sleepy", img.Description)
	assert.Equal(t, "cat.png", img.OriginalName)
	assert.Regexp(t, `^images/\d+_cat\.png$`, img.Path)
	assert.True(t, f.objects.has(img.Path))
}

func TestUploadImage_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.UploadImage(ctx, UploadInput{Title: "Cat"})
	requireValidation(t, err, "image")

	bad := upload("cat.bmp", fileOf(bmpMagic, 64))
	_, err = f.svc.UploadImage(ctx, UploadInput{Title: "", Image: &bad})
	ve := requireValidation(t, err, "image")
	assert.Contains(t, ve.Fields, "title")

	assert.Zero(t, f.store.imageCount())
	assert.Zero(t, f.objects.count())
}

func TestReads_RefreshURLs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.CreatePosting(ctx, CreateInput{Title: "Trip", Images: pngUploads(1)})
	require.NoError(t, err)
	img := p.Images[0]
	f.store.setImageURL(img.ID, "https://stale.example/old")

	fresh := "https://objects.test/" + img.Path + "?expires=24h0m0s"

	got, err := f.svc.GetPosting(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, fresh, got.Images[0].URL)

	list, err := f.svc.ListPostings(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, fresh, list[0].Images[0].URL)

	one, err := f.svc.GetImage(ctx, img.ID)
	require.NoError(t, err)
	assert.Equal(t, fresh, one.URL)

	all, err := f.svc.ListImages(ctx)
	require.NoError(t, err)
	assert.Equal(t, fresh, all[0].URL)
}

func TestReads_KeepLastKnownURLWhenSigningFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.CreatePosting(ctx, CreateInput{Title: "Trip", Images: pngUploads(1)})
	require.NoError(t, err)
	f.store.setImageURL(p.Images[0].ID, "https://stale.example/old")
	f.objects.fail["URL"] = errBoom

	got, err := f.svc.GetPosting(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://stale.example/old", got.Images[0].URL)
	assert.Contains(t, f.logs.String(), "refreshing image url failed")
}

func TestListPostings_GroupsImagesNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.CreatePosting(ctx, CreateInput{Title: "First", Images: pngUploads(2)})
	require.NoError(t, err)
	second, err := f.svc.CreatePosting(ctx, CreateInput{Title: "Second", Images: pngUploads(1)})
	require.NoError(t, err)

	list, err := f.svc.ListPostings(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Len(t, list[0].Images, 1)
	assert.Equal(t, first.ID, list[1].ID)
	assert.Len(t, list[1].Images, 2)
}
