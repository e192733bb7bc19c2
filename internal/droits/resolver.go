package droits

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mohamdabidi2/geox-sub001/internal/shared"
)

// Resolver answers access-decision queries for one user. Its effective id
// sets are derived from the same AccessRight collections the Store holds,
// with no second backend round trip, and are re-derived whenever the store's
// version moves.
//
// The two resource axes behave asymmetrically on purpose. Magasin scoping is
// the mandatory axis of this ERP: no data means no access. Category and
// client restrictions are optional refinements: an empty set reads as "no
// restriction configured", not "nothing permitted".
type Resolver struct {
	store *Store
	user  shared.UserProfile
	now   func() time.Time

	mu         sync.RWMutex
	loaded     bool
	loadErr    error
	kindFailed map[Kind]bool
	version    uint64
	rights     EffectiveRights
}

// NewResolver binds a resolver to its user and backing store.
func NewResolver(store *Store, user shared.UserProfile) *Resolver {
	return &Resolver{
		store:      store,
		user:       user,
		now:        time.Now,
		kindFailed: make(map[Kind]bool, 3),
	}
}

// Load fetches the user's rights through the store and derives the effective
// sets. It never returns an error: a failed load degrades to fallback rights
// (home magasin only, unrestricted categories and clients) with the failure
// recorded for display, so the caller always ends in a renderable state.
func (r *Resolver) Load(ctx context.Context) {
	result := r.store.FetchAllRights(ctx, r.user.ID)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded = true
	r.loadErr = result.Combined()
	for _, kind := range Kinds() {
		r.kindFailed[kind] = result.Err(kind) != nil
	}
	r.deriveLocked()
}

// Refresh re-runs Load. Idempotent, safe to call from a retry action.
func (r *Resolver) Refresh(ctx context.Context) {
	r.Load(ctx)
}

// Loaded reports whether the initial load has finished, successfully or not.
func (r *Resolver) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

// Err returns the recorded load failure, nil when the last load was clean.
func (r *Resolver) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loadErr
}

// User returns the profile the resolver was built for.
func (r *Resolver) User() shared.UserProfile {
	return r.user
}

// HasMagasinAccess decides the mandatory axis: default-deny. False when
// rights are not loaded, when the id is absent, or when the accessible set is
// empty. Absence of data must never silently grant access.
func (r *Resolver) HasMagasinAccess(id any) bool {
	mid, ok := CoerceID(id)
	if !ok {
		return false
	}
	r.mu.Lock()
	r.rederiveLocked()
	loaded, set := r.loaded, r.rights.Magasins
	r.mu.Unlock()
	if !loaded || len(set) == 0 {
		return false
	}
	_, member := set[mid]
	return member
}

// HasCategoryAccess decides an optional axis: default-allow. True when the id
// is absent, rights are not loaded, or no restriction is configured.
func (r *Resolver) HasCategoryAccess(id any) bool {
	return r.hasOptionalAccess(id, KindCategory)
}

// HasClientAccess decides the other optional axis, same default-allow rule.
func (r *Resolver) HasClientAccess(id any) bool {
	return r.hasOptionalAccess(id, KindClient)
}

func (r *Resolver) hasOptionalAccess(id any, kind Kind) bool {
	rid, ok := CoerceID(id)
	if !ok {
		return true
	}
	r.mu.Lock()
	r.rederiveLocked()
	loaded := r.loaded
	set := r.rights.Set(kind)
	r.mu.Unlock()
	if !loaded || len(set) == 0 {
		return true
	}
	_, member := set[rid]
	return member
}

// HasMandatoryMagasinAccess checks the user's own home magasin; false when
// the user has no home magasin at all.
func (r *Resolver) HasMandatoryMagasinAccess() bool {
	if r.user.MagasinID == 0 {
		return false
	}
	return r.HasMagasinAccess(r.user.MagasinID)
}

// AccessibleMagasins returns the current magasin id set, sorted; empty when
// unloaded.
func (r *Resolver) AccessibleMagasins() []int64 {
	return r.accessible(KindMagasin)
}

// AccessibleCategories returns the current category id set, sorted.
func (r *Resolver) AccessibleCategories() []int64 {
	return r.accessible(KindCategory)
}

// AccessibleClients returns the current client id set, sorted.
func (r *Resolver) AccessibleClients() []int64 {
	return r.accessible(KindClient)
}

func (r *Resolver) accessible(kind Kind) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rederiveLocked()
	return SortedIDs(r.rights.Set(kind))
}

// FilterByRights prunes a dataset by resource kind. Single-axis kinds keep
// items passing their predicate; "products" requires magasin AND category,
// "orders" requires magasin AND client. An unrecognized kind filters nothing:
// the gate fails open for categories of data it does not know, by the scope
// rule that fine-grained enforcement only covers declared kinds.
func (r *Resolver) FilterByRights(items []map[string]any, kind string) []map[string]any {
	var keep func(map[string]any) bool
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "magasins":
		keep = func(item map[string]any) bool {
			return r.HasMagasinAccess(itemID(item, magasinFields, true))
		}
	case "categories":
		keep = func(item map[string]any) bool {
			return r.HasCategoryAccess(itemID(item, categoryFields, true))
		}
	case "clients":
		keep = func(item map[string]any) bool {
			return r.HasClientAccess(itemID(item, clientFields, true))
		}
	case "products":
		keep = func(item map[string]any) bool {
			return r.HasMagasinAccess(itemID(item, magasinFields, false)) &&
				r.HasCategoryAccess(itemID(item, categoryFields, false))
		}
	case "orders":
		keep = func(item map[string]any) bool {
			return r.HasMagasinAccess(itemID(item, magasinFields, false)) &&
				r.HasClientAccess(itemID(item, clientFields, false))
		}
	default:
		return items
	}

	filtered := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if keep(item) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

// rederiveLocked refreshes the effective sets when the store has newer data.
// Kinds whose last fetch failed keep their fallback values: home magasin only
// for the mandatory axis, no restriction for the optional ones.
func (r *Resolver) rederiveLocked() {
	if !r.loaded {
		return
	}
	if v := r.store.Version(); v != r.version {
		r.deriveLocked()
	}
}

func (r *Resolver) deriveLocked() {
	// Collections and version come from one snapshot: reading them through
	// separate store calls could memoize a version against another fetch's
	// data.
	collections, version := r.store.Snapshot()
	derived := DeriveEffective(
		collections[KindCategory],
		collections[KindMagasin],
		collections[KindClient],
		r.now(),
	)
	if r.kindFailed[KindMagasin] {
		derived.Magasins = map[int64]struct{}{}
		if r.user.MagasinID != 0 {
			derived.Magasins[r.user.MagasinID] = struct{}{}
		}
	}
	if r.kindFailed[KindCategory] {
		derived.Categories = map[int64]struct{}{}
	}
	if r.kindFailed[KindClient] {
		derived.Clients = map[int64]struct{}{}
	}
	r.rights = derived
	r.version = version
}

// CoerceID normalizes resource identifiers arriving as JSON numbers, native
// integers or strings into the id domain used by the sets. A string "3" and
// the number 3 are the same id; failing to fold them produces false
// negatives. Zero, empty and unparseable values count as absent.
func CoerceID(v any) (int64, bool) {
	switch id := v.(type) {
	case nil:
		return 0, false
	case int64:
		if id > 0 {
			return id, true
		}
	case int:
		if id > 0 {
			return int64(id), true
		}
	case int32:
		if id > 0 {
			return int64(id), true
		}
	case float64:
		if id > 0 && id == float64(int64(id)) {
			return int64(id), true
		}
	case float32:
		return CoerceID(float64(id))
	case string:
		trimmed := strings.TrimSpace(id)
		if trimmed == "" {
			return 0, false
		}
		if parsed, err := strconv.ParseInt(trimmed, 10, 64); err == nil && parsed > 0 {
			return parsed, true
		}
	}
	return 0, false
}

// Field name fallbacks for resolving an item's resource id: the flattened
// foreign key first, snake_case variant next, then the nested resource
// object. The bare "id" is only consulted when the item itself is a row of
// the resource collection being filtered.
var (
	magasinFields  = idFields{flat: []string{"magasinId", "magasin_id"}, nested: "magasin"}
	categoryFields = idFields{flat: []string{"categoryId", "category_id"}, nested: "category"}
	clientFields   = idFields{flat: []string{"clientId", "client_id"}, nested: "client"}
)

type idFields struct {
	flat   []string
	nested string
}

func itemID(item map[string]any, fields idFields, ownCollection bool) any {
	for _, name := range fields.flat {
		if v, ok := item[name]; ok {
			if id, valid := CoerceID(v); valid {
				return id
			}
		}
	}
	if nested, ok := item[fields.nested].(map[string]any); ok {
		if id, valid := CoerceID(nested["id"]); valid {
			return id
		}
	}
	if ownCollection {
		if id, valid := CoerceID(item["id"]); valid {
			return id
		}
	}
	return nil
}
