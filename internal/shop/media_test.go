package shop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pixel = "data:image/jpeg;base64,/9j/4AAQSkZJRg=="

func TestSubmitUpload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	visitor := Visitor{IP: "192.0.2.10", UserAgent: "Mozilla/5.0 (iPhone)"}

	item, err := f.svc.SubmitUpload(ctx, visitor, []byte(`{"image":"`+pixel+`","name":"toast.jpg","caption":"crispy"}`))
	require.NoError(t, err)

	assert.Equal(t, pixel, item.ImageURL)
	assert.Equal(t, "toast.jpg", item.Name)
	assert.Equal(t, "192.0.2.10", item.IP)
	assert.Equal(t, "Mozilla/5.0 (iPhone)", item.Device)
	assert.Nil(t, item.ApprovedAt)

	m := toMap(t, item)
	assert.Equal(t, "crispy", m["caption"])
	assert.NotContains(t, m, "image", "data URL is stored once, as imageUrl")

	queue, err := f.svc.Uploads(ctx)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, item.ID, queue[0].ID)
}

func TestSubmitUploadRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	visitor := Visitor{IP: "192.0.2.10"}

	tests := []struct {
		name string
		body string
	}{
		{"not an object", `[1]`},
		{"no image", `{"name":"x"}`},
		{"not a url", `{"image":"javascript:alert(1)"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SubmitUpload(ctx, visitor, []byte(tt.body))
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	require.NoError(t, f.svc.Ban(ctx, "192.0.2.10"))
	_, err := f.svc.SubmitUpload(ctx, visitor, []byte(`{"image":"`+pixel+`"}`))
	assert.ErrorIs(t, err, ErrBanned)
}

func TestApprove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.SubmitUpload(ctx, Visitor{IP: "192.0.2.1"}, []byte(`{"image":"`+pixel+`"}`))
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	second, err := f.svc.SubmitUpload(ctx, Visitor{IP: "192.0.2.2"}, []byte(`{"image":"`+pixel+`"}`))
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	approved, err := f.svc.Approve(ctx, second.ID, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultTitle, approved.Title)
	require.NotNil(t, approved.ApprovedAt)

	f.clock.Advance(time.Minute)
	_, err = f.svc.Approve(ctx, first.ID, "  Golden brown  ")
	require.NoError(t, err)

	gallery, err := f.svc.Gallery(ctx)
	require.NoError(t, err)
	require.Len(t, gallery, 2)
	assert.Equal(t, first.ID, gallery[0].ID, "most recently approved first")
	assert.Equal(t, "Golden brown", gallery[0].Title)

	queue, err := f.svc.Uploads(ctx)
	require.NoError(t, err)
	assert.Empty(t, queue)

	_, err = f.svc.Approve(ctx, first.ID, "")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, auditRecord{"approveUpload", first.ID, "NOT_FOUND"}, f.audit.last())
}

func TestApproveReplacesUploaderTitle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	titled, err := f.svc.SubmitUpload(ctx, Visitor{IP: "192.0.2.1"}, []byte(`{"image":"`+pixel+`","title":"Best toast ever!!!"}`))
	require.NoError(t, err)
	assert.Equal(t, "Best toast ever!!!", titled.Title)

	approved, err := f.svc.Approve(ctx, titled.ID, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultTitle, approved.Title)

	other, err := f.svc.SubmitUpload(ctx, Visitor{IP: "192.0.2.1"}, []byte(`{"image":"`+pixel+`","title":"mine"}`))
	require.NoError(t, err)
	approved, err = f.svc.Approve(ctx, other.ID, "Crust study")
	require.NoError(t, err)
	assert.Equal(t, "Crust study", approved.Title)
}

func TestRejectUpload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item, err := f.svc.SubmitUpload(ctx, Visitor{IP: "192.0.2.1"}, []byte(`{"image":"`+pixel+`"}`))
	require.NoError(t, err)

	require.NoError(t, f.svc.RejectUpload(ctx, item.ID))
	assert.ErrorIs(t, f.svc.RejectUpload(ctx, item.ID), ErrNotFound)

	queue, err := f.svc.Uploads(ctx)
	require.NoError(t, err)
	assert.Empty(t, queue)
}

func TestAddToGallery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The admin dashboard approves by posting the queued item back.
	item, err := f.svc.AddToGallery(ctx, []byte(`{"id":"u-1","imageUrl":"`+pixel+`","name":"bagel","date":"2026-05-01T08:00:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, "u-1", item.ID)
	assert.Equal(t, DefaultTitle, item.Title)
	assert.Equal(t, time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC), item.Date)

	again, err := f.svc.AddToGallery(ctx, []byte(`{"id":"u-1","imageUrl":"`+pixel+`","title":"Second"}`))
	require.NoError(t, err)
	assert.NotEqual(t, "u-1", again.ID, "taken ids are replaced")
	assert.Equal(t, f.clock.Now(), again.Date)

	_, err = f.svc.AddToGallery(ctx, []byte(`{"id":"u-2"}`))
	assert.ErrorIs(t, err, ErrInvalidInput)

	gallery, err := f.svc.Gallery(ctx)
	require.NoError(t, err)
	assert.Len(t, gallery, 2)
}

func TestDeleteGalleryItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item, err := f.svc.AddToGallery(ctx, []byte(`{"imageUrl":"https://cdn.example/toast.png"}`))
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteGalleryItem(ctx, item.ID))
	assert.ErrorIs(t, f.svc.DeleteGalleryItem(ctx, item.ID), ErrNotFound)
	assert.Equal(t, "deleteGalleryItem", f.audit.last().action)
}
