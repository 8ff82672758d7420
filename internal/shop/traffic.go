package shop

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/toastigo/storefront/internal/store"
)

const (
	recentTrafficSize = 50
	visitsTotalKey    = "visits.total"
)

// Visitor identifies the client behind a request.
type Visitor struct {
	IP        string
	UserAgent string
	Referer   string
	Path      string
}

// Visit is one recorded page view.
type Visit struct {
	Timestamp time.Time `json:"timestamp"`
	IP        string    `json:"ip"`
	Path      string    `json:"path"`
	Source    string    `json:"source"`
	Device    string    `json:"device"`
}

// Ban blocks an IP from placing orders and uploads.
type Ban struct {
	IP   string    `json:"ip"`
	Date time.Time `json:"date"`
}

// Analytics summarizes traffic for the admin dashboard.
type Analytics struct {
	Visits         int64   `json:"visits"`
	UniqueVisitors int     `json:"uniqueVisitors"`
	Today          int     `json:"today"`
	TotalOrders    int     `json:"totalOrders"`
	PendingUploads int     `json:"pendingUploads"`
	GallerySize    int     `json:"gallerySize"`
	RecentTraffic  []Visit `json:"recentTraffic"`
	Banned         []Ban   `json:"banned"`
}

// RecordVisit appends a page view and trims the log to the retention cap.
func (s *Service) RecordVisit(ctx context.Context, v Visitor) error {
	source := v.Referer
	if source == "" {
		source = "direct"
	}
	visit := Visit{
		Timestamp: s.timestamp(),
		IP:        v.IP,
		Path:      v.Path,
		Source:    source,
		Device:    v.UserAgent,
	}

	return s.store.Update(func(tx *store.Tx) error {
		if _, err := tx.Append(store.Visits, visit); err != nil {
			return err
		}
		var total int64
		if err := tx.Get(store.Meta, visitsTotalKey, &total); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if err := tx.Put(store.Meta, visitsTotalKey, total+1); err != nil {
			return err
		}
		_, err := tx.Trim(store.Visits, s.visitRetention)
		return err
	})
}

// Analytics reports visit totals, recent traffic and active bans.
func (s *Service) Analytics(ctx context.Context) (Analytics, error) {
	a := Analytics{}
	err := s.store.View(func(tx *store.Tx) error {
		if err := tx.Get(store.Meta, visitsTotalKey, &a.Visits); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}

		visits, err := store.ListTx[Visit](tx, store.Visits)
		if err != nil {
			return err
		}
		y, m, d := s.timestamp().Date()
		unique := make(map[string]struct{}, len(visits))
		for _, v := range visits {
			unique[v.IP] = struct{}{}
			if vy, vm, vd := v.Timestamp.Date(); vy == y && vm == m && vd == d {
				a.Today++
			}
		}
		a.UniqueVisitors = len(unique)

		recent := visits[max(0, len(visits)-recentTrafficSize):]
		a.RecentTraffic = make([]Visit, 0, len(recent))
		for i := len(recent) - 1; i >= 0; i-- {
			a.RecentTraffic = append(a.RecentTraffic, recent[i])
		}

		if a.TotalOrders, err = tx.Count(store.Orders); err != nil {
			return err
		}
		if a.PendingUploads, err = tx.Count(store.Uploads); err != nil {
			return err
		}
		if a.GallerySize, err = tx.Count(store.Gallery); err != nil {
			return err
		}

		a.Banned, err = store.ListTx[Ban](tx, store.Bans)
		return err
	})
	if err != nil {
		return Analytics{}, fmt.Errorf("analytics: %w", err)
	}
	slices.SortStableFunc(a.Banned, func(x, y Ban) int { return y.Date.Compare(x.Date) })
	return a, nil
}

// Ban blocks ip.
func (s *Service) Ban(ctx context.Context, ip string) error {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		err = fmt.Errorf("invalid ip %q: %w", ip, ErrInvalidInput)
		s.record(ctx, "banIp", ip, nil, err)
		return err
	}
	ip = addr.Unmap().String()

	err = s.store.Put(store.Bans, ip, Ban{IP: ip, Date: s.timestamp()})
	s.record(ctx, "banIp", ip, nil, err)
	if err != nil {
		return fmt.Errorf("save ban: %w", err)
	}
	s.log.Info("IP banned", zap.String("ip", ip))
	return nil
}

// Unban lifts a ban. Unbanning an IP that is not banned is a no-op.
func (s *Service) Unban(ctx context.Context, ip string) error {
	if addr, err := netip.ParseAddr(ip); err == nil {
		ip = addr.Unmap().String()
	}
	err := s.store.Delete(store.Bans, ip)
	if errors.Is(err, store.ErrNotFound) {
		err = nil
	}
	s.record(ctx, "unbanIp", ip, nil, err)
	return err
}

// UnbanAll lifts every ban and returns how many there were.
func (s *Service) UnbanAll(ctx context.Context) (int, error) {
	var n int
	err := s.store.Update(func(tx *store.Tx) error {
		var err error
		n, err = tx.Clear(store.Bans)
		return err
	})
	s.record(ctx, "unbanAll", "", map[string]interface{}{"count": n}, err)
	return n, err
}

// IsBanned reports whether ip is banned.
func (s *Service) IsBanned(ip string) (bool, error) {
	if addr, err := netip.ParseAddr(ip); err == nil {
		ip = addr.Unmap().String()
	}
	var ban Ban
	err := s.store.Get(store.Bans, ip, &ban)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (s *Service) checkBanned(ip string) error {
	banned, err := s.IsBanned(ip)
	if err != nil {
		return fmt.Errorf("check ban: %w", err)
	}
	if banned {
		return fmt.Errorf("ip %s: %w", ip, ErrBanned)
	}
	return nil
}
