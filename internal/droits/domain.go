// Package droits implements the time-bounded access-rights model of GeoX:
// grants scoped to a category, a magasin or a client, valid over an inclusive
// time window, and the derived per-user effective access used to gate pages
// and filter datasets.
package droits

import (
	"fmt"
	"sort"
	"time"
)

// Kind identifies which resource a right applies to.
type Kind string

const (
	KindCategory Kind = "category"
	KindMagasin  Kind = "magasin"
	KindClient   Kind = "client"
)

// Kinds lists all resource kinds in a stable order.
func Kinds() []Kind {
	return []Kind{KindCategory, KindMagasin, KindClient}
}

// ParseKind validates a kind coming from a URL segment.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindCategory, KindMagasin, KindClient:
		return Kind(s), nil
	}
	return "", fmt.Errorf("droits: unknown kind %q", s)
}

// AccessRight is a time-bounded grant from a user to one resource. Exactly
// one of CategoryID/MagasinID/ClientID is set depending on the kind; user and
// resource are write-once, only the validity window and the responsible user
// change on update. Display names are backend-denormalized projections, never
// authoritative.
type AccessRight struct {
	ID         int64 `json:"id"`
	UserID     int64 `json:"userId"`
	CategoryID int64 `json:"categoryId,omitempty"`
	MagasinID  int64 `json:"magasinId,omitempty"`
	ClientID   int64 `json:"clientId,omitempty"`

	StartsAt  time.Time `json:"startsAt"`
	ExpiresAt time.Time `json:"expiresAt"`

	ResponsibleUserID int64 `json:"responsibleUserId"`

	UserName        string `json:"userName,omitempty"`
	ResourceName    string `json:"resourceName,omitempty"`
	ResponsibleName string `json:"responsibleName,omitempty"`
}

// ResourceID returns the populated resource foreign key for the given kind.
func (r AccessRight) ResourceID(kind Kind) int64 {
	switch kind {
	case KindCategory:
		return r.CategoryID
	case KindMagasin:
		return r.MagasinID
	case KindClient:
		return r.ClientID
	}
	return 0
}

// IsActive reports whether the validity window contains now. Both bounds are
// inclusive: a right is active at its exact start instant and at its exact
// expiry instant. The result must not be cached across time-sensitive
// operations; it can flip between two reads with no write occurring.
func (r AccessRight) IsActive(now time.Time) bool {
	return !now.Before(r.StartsAt) && !now.After(r.ExpiresAt)
}

// ActiveRights returns the subset of rights whose window contains now.
func ActiveRights(rights []AccessRight, now time.Time) []AccessRight {
	active := make([]AccessRight, 0, len(rights))
	for _, r := range rights {
		if r.IsActive(now) {
			active = append(active, r)
		}
	}
	return active
}

// EffectiveRights is the derived per-user summary of currently-accessible
// resource ids per kind. It is recomputed from the raw collections, never
// incrementally maintained.
type EffectiveRights struct {
	Magasins   map[int64]struct{}
	Categories map[int64]struct{}
	Clients    map[int64]struct{}
}

// DeriveEffective projects the active subset of each collection to its
// resource ids.
func DeriveEffective(categories, magasins, clients []AccessRight, now time.Time) EffectiveRights {
	return EffectiveRights{
		Categories: projectActive(categories, KindCategory, now),
		Magasins:   projectActive(magasins, KindMagasin, now),
		Clients:    projectActive(clients, KindClient, now),
	}
}

func projectActive(rights []AccessRight, kind Kind, now time.Time) map[int64]struct{} {
	ids := make(map[int64]struct{}, len(rights))
	for _, r := range rights {
		if !r.IsActive(now) {
			continue
		}
		if id := r.ResourceID(kind); id != 0 {
			ids[id] = struct{}{}
		}
	}
	return ids
}

// Set returns the id set for the given kind.
func (e EffectiveRights) Set(kind Kind) map[int64]struct{} {
	switch kind {
	case KindCategory:
		return e.Categories
	case KindMagasin:
		return e.Magasins
	case KindClient:
		return e.Clients
	}
	return nil
}

// SortedIDs flattens a set into a sorted slice, empty (not nil) when the set
// is empty or absent.
func SortedIDs(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
