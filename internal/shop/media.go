package shop

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/toastigo/storefront/internal/store"
)

// DefaultTitle names approved uploads that were given no title.
const DefaultTitle = "Community Upload"

var itemKeys = []string{"id", "date", "name", "title", "image", "imageUrl", "ip", "device", "approvedAt"}

// Item is a community photo, either pending moderation or live in the gallery.
type Item struct {
	ID         string     `json:"id"`
	Date       time.Time  `json:"date"`
	Name       string     `json:"name,omitempty"`
	Title      string     `json:"title,omitempty"`
	ImageURL   string     `json:"imageUrl"`
	IP         string     `json:"ip,omitempty"`
	Device     string     `json:"device,omitempty"`
	ApprovedAt *time.Time `json:"approvedAt,omitempty"`
	Extra      Fields     `json:"-"`
}

// MarshalJSON flattens Extra next to the typed fields.
func (it Item) MarshalJSON() ([]byte, error) {
	type plain Item
	return mergeJSON(it.Extra, plain(it))
}

// UnmarshalJSON splits typed fields from the rest.
func (it *Item) UnmarshalJSON(data []byte) error {
	type plain Item
	var p plain
	extra, err := splitJSON(data, &p, itemKeys)
	if err != nil {
		return err
	}
	*it = Item(p)
	it.Extra = extra
	return nil
}

// image accepts the SPA's data URL under "image" or a link under "imageUrl".
func image(f Fields) (string, error) {
	img := f.str("imageUrl")
	if img == "" {
		img = f.str("image")
	}
	switch {
	case strings.HasPrefix(img, "data:image/"),
		strings.HasPrefix(img, "https://"),
		strings.HasPrefix(img, "http://"):
		return img, nil
	case img == "":
		return "", fmt.Errorf("image is required: %w", ErrInvalidInput)
	default:
		return "", fmt.Errorf("image must be a data URL or http(s) link: %w", ErrInvalidInput)
	}
}

// SubmitUpload queues a community upload for moderation.
func (s *Service) SubmitUpload(ctx context.Context, v Visitor, body []byte) (Item, error) {
	if err := s.checkBanned(v.IP); err != nil {
		return Item{}, err
	}

	fields, err := decodeFields(body)
	if err != nil {
		return Item{}, err
	}
	img, err := image(fields)
	if err != nil {
		return Item{}, err
	}

	item := Item{
		ID:       uuid.NewString(),
		Date:     s.timestamp(),
		Name:     fields.str("name"),
		Title:    fields.str("title"),
		ImageURL: img,
		IP:       v.IP,
		Device:   v.UserAgent,
	}
	item.Extra = fields.drop(itemKeys...)

	if err := s.store.Put(store.Uploads, item.ID, item); err != nil {
		return Item{}, fmt.Errorf("save upload: %w", err)
	}

	s.log.Info("Upload queued", zap.String("uploadId", item.ID), zap.String("ip", v.IP))
	return item, nil
}

// Uploads lists the moderation queue, oldest first.
func (s *Service) Uploads(ctx context.Context) ([]Item, error) {
	items, err := store.List[Item](s.store, store.Uploads)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	slices.SortStableFunc(items, func(a, b Item) int { return a.Date.Compare(b.Date) })
	return items, nil
}

// Approve moves an upload into the gallery.
func (s *Service) Approve(ctx context.Context, id, title string) (Item, error) {
	var item Item
	err := s.store.Update(func(tx *store.Tx) error {
		if err := tx.Get(store.Uploads, id, &item); err != nil {
			return err
		}
		if err := tx.Delete(store.Uploads, id); err != nil {
			return err
		}
		// The moderator's title replaces whatever the uploader sent.
		item.Title = ""
		s.publish(&item, title)
		return tx.Put(store.Gallery, item.ID, item)
	})
	if errors.Is(err, store.ErrNotFound) {
		err = fmt.Errorf("upload %s: %w", id, ErrNotFound)
	}
	s.record(ctx, "approveUpload", id, map[string]interface{}{"title": item.Title}, err)
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

// RejectUpload drops an upload from the queue.
func (s *Service) RejectUpload(ctx context.Context, id string) error {
	err := s.store.Delete(store.Uploads, id)
	if errors.Is(err, store.ErrNotFound) {
		err = fmt.Errorf("upload %s: %w", id, ErrNotFound)
	}
	s.record(ctx, "rejectUpload", id, nil, err)
	return err
}

// Gallery lists live items, most recently approved first.
func (s *Service) Gallery(ctx context.Context) ([]Item, error) {
	items, err := store.List[Item](s.store, store.Gallery)
	if err != nil {
		return nil, fmt.Errorf("list gallery: %w", err)
	}
	slices.SortStableFunc(items, func(a, b Item) int { return liveSince(b).Compare(liveSince(a)) })
	return items, nil
}

// AddToGallery publishes an item directly. A client-supplied id is kept
// unless it is already live.
func (s *Service) AddToGallery(ctx context.Context, body []byte) (Item, error) {
	fields, err := decodeFields(body)
	if err != nil {
		s.record(ctx, "addGalleryItem", "", nil, err)
		return Item{}, err
	}
	img, err := image(fields)
	if err != nil {
		s.record(ctx, "addGalleryItem", "", nil, err)
		return Item{}, err
	}

	item := Item{
		ID:       fields.str("id"),
		Name:     fields.str("name"),
		ImageURL: img,
		IP:       fields.str("ip"),
		Device:   fields.str("device"),
	}
	item.Date, err = time.Parse(time.RFC3339Nano, fields.str("date"))
	if err != nil {
		item.Date = s.timestamp()
	}
	title := fields.str("title")
	item.Extra = fields.drop(itemKeys...)

	err = s.store.Update(func(tx *store.Tx) error {
		if item.ID != "" {
			var existing Item
			err := tx.Get(store.Gallery, item.ID, &existing)
			if err == nil {
				item.ID = ""
			} else if !errors.Is(err, store.ErrNotFound) {
				return err
			}
		}
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		s.publish(&item, title)
		return tx.Put(store.Gallery, item.ID, item)
	})
	s.record(ctx, "addGalleryItem", item.ID, map[string]interface{}{"title": item.Title}, err)
	if err != nil {
		return Item{}, fmt.Errorf("save gallery item: %w", err)
	}
	return item, nil
}

// DeleteGalleryItem removes a live item.
func (s *Service) DeleteGalleryItem(ctx context.Context, id string) error {
	err := s.store.Delete(store.Gallery, id)
	if errors.Is(err, store.ErrNotFound) {
		err = fmt.Errorf("gallery item %s: %w", id, ErrNotFound)
	}
	s.record(ctx, "deleteGalleryItem", id, nil, err)
	return err
}

func (s *Service) publish(item *Item, title string) {
	if title = strings.TrimSpace(title); title != "" {
		item.Title = title
	}
	if item.Title == "" {
		item.Title = DefaultTitle
	}
	now := s.timestamp()
	item.ApprovedAt = &now
}

func liveSince(it Item) time.Time {
	if it.ApprovedAt != nil {
		return *it.ApprovedAt
	}
	return it.Date
}
