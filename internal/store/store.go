package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"kidsclub-backend/internal/model"
	"kidsclub-backend/internal/parse"
)

// Validation failures surfaced by write operations.
var (
	ErrRoomNumberTaken = errors.New("room number already exists")
	ErrNotFound        = gorm.ErrRecordNotFound
)

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB

	CreateChild(ctx context.Context, child *model.Child) error
	ChildByID(ctx context.Context, id int64) (*model.Child, error)
	ChildByBarcode(ctx context.Context, barcode string) (*model.Child, error)

	CreateRoom(ctx context.Context, room *model.Room) error
	RoomByID(ctx context.Context, id int64) (*model.Room, error)

	CreatePackage(ctx context.Context, pkg *model.Package) error

	CreateSubscription(ctx context.Context, childID int64, packageIDs []int64, startDate time.Time) (*model.Subscription, error)
	ConfirmSubscription(ctx context.Context, id int64, today time.Time) (*model.Subscription, error)
	FindActiveSubscription(ctx context.Context, childID int64, today time.Time) (*model.Subscription, error)

	SessionByID(ctx context.Context, id int64) (*model.CheckinSession, error)
	ActiveSessions(ctx context.Context) ([]model.CheckinSession, error)
	DashboardStats(ctx context.Context, today time.Time) (Stats, error)

	ActivateDueSubscriptions(ctx context.Context, today time.Time) (int64, error)
	ExpireLapsedSubscriptions(ctx context.Context, today time.Time) (int64, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// CreateChild persists a child and assigns their badge barcode from
// the generated record id.
func (s *gormStore) CreateChild(ctx context.Context, child *model.Child) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if child.RegistrationDate.IsZero() {
			child.RegistrationDate = time.Now().UTC()
		}
		// Placeholder until the id exists; the column is unique.
		if child.BarcodeID == "" {
			child.BarcodeID = fmt.Sprintf("pending-%d", time.Now().UnixNano())
		}
		if err := tx.Create(child).Error; err != nil {
			return fmt.Errorf("failed to create child: %w", err)
		}
		child.BarcodeID = parse.FormatBarcode(child.ID)
		if err := tx.Model(child).Update("barcode_id", child.BarcodeID).Error; err != nil {
			return fmt.Errorf("failed to assign barcode: %w", err)
		}
		return nil
	})
}

func (s *gormStore) ChildByID(ctx context.Context, id int64) (*model.Child, error) {
	var child model.Child
	if err := s.db.WithContext(ctx).First(&child, id).Error; err != nil {
		return nil, err
	}
	return &child, nil
}

func (s *gormStore) ChildByBarcode(ctx context.Context, barcode string) (*model.Child, error) {
	seq, err := parse.ParseBarcode(barcode)
	if err != nil {
		return nil, err
	}
	var child model.Child
	if err := s.db.WithContext(ctx).First(&child, "barcode_id = ?", parse.FormatBarcode(seq)).Error; err != nil {
		return nil, err
	}
	return &child, nil
}

// CreateRoom persists a room. Room numbers must be unique among active
// rooms; archived rooms may keep theirs.
func (s *gormStore) CreateRoom(ctx context.Context, room *model.Room) error {
	if err := room.Validate(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Room{}).
			Where("room_number = ? AND active = ?", room.RoomNumber, true).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrRoomNumberTaken
		}
		room.Active = true
		return tx.Create(room).Error
	})
}

func (s *gormStore) RoomByID(ctx context.Context, id int64) (*model.Room, error) {
	var room model.Room
	if err := s.db.WithContext(ctx).First(&room, id).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *gormStore) CreatePackage(ctx context.Context, pkg *model.Package) error {
	if err := pkg.Validate(); err != nil {
		return err
	}
	pkg.Active = true
	return s.db.WithContext(ctx).Create(pkg).Error
}

// CreateSubscription creates a draft entitlement from one or more
// packages. The validity window and visit count come from the most
// generous package; the price is the sum.
func (s *gormStore) CreateSubscription(ctx context.Context, childID int64, packageIDs []int64, startDate time.Time) (*model.Subscription, error) {
	if len(packageIDs) == 0 {
		return nil, errors.New("at least one package is required")
	}

	var sub model.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var child model.Child
		if err := tx.First(&child, childID).Error; err != nil {
			return fmt.Errorf("child %d: %w", childID, err)
		}

		var packages []model.Package
		if err := tx.Find(&packages, packageIDs).Error; err != nil {
			return err
		}
		if len(packages) != len(packageIDs) {
			return errors.New("one or more packages do not exist")
		}

		validityDays := 0
		totalVisits := 0
		price := 0.0
		currency := ""
		for _, pkg := range packages {
			if d := pkg.ValidityDays(); d > validityDays {
				validityDays = d
			}
			if pkg.NumberOfVisits > totalVisits {
				totalVisits = pkg.NumberOfVisits
			}
			price += pkg.Price
			if currency == "" {
				currency = pkg.Currency
			}
		}

		start := model.DateOf(startDate)
		sub = model.Subscription{
			ChildID:       childID,
			StartDate:     start,
			EndDate:       start.AddDate(0, 0, validityDays),
			State:         model.SubscriptionDraft,
			PaymentStatus: model.PaymentUnpaid,
			Price:         price,
			Currency:      currency,
			TotalVisits:   totalVisits,
		}
		if err := tx.Create(&sub).Error; err != nil {
			return fmt.Errorf("failed to create subscription: %w", err)
		}
		if err := tx.Model(&sub).Association("Packages").Append(&packages); err != nil {
			return fmt.Errorf("failed to link packages: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.subscriptionByID(ctx, sub.ID)
}

// ConfirmSubscription marks an entitlement paid and activates it when
// its window has already opened.
func (s *gormStore) ConfirmSubscription(ctx context.Context, id int64, today time.Time) (*model.Subscription, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sub model.Subscription
		if err := tx.First(&sub, id).Error; err != nil {
			return err
		}
		updates := map[string]any{"payment_status": model.PaymentPaid}
		if sub.State == model.SubscriptionDraft && !model.DateOf(today).Before(model.DateOf(sub.StartDate)) {
			updates["state"] = model.SubscriptionActive
		}
		return tx.Model(&sub).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return s.subscriptionByID(ctx, id)
}

func (s *gormStore) subscriptionByID(ctx context.Context, id int64) (*model.Subscription, error) {
	var sub model.Subscription
	if err := s.db.WithContext(ctx).Preload("Packages").First(&sub, id).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// FindActiveSubscription selects the entitlement backing a check-in:
// usable today, with the most recent start date winning ties, then the
// highest id. Returns ErrNotFound when none qualifies.
func (s *gormStore) FindActiveSubscription(ctx context.Context, childID int64, today time.Time) (*model.Subscription, error) {
	subs, err := usableSubscriptions(s.db.WithContext(ctx), childID, today)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, ErrNotFound
	}
	return &subs[0], nil
}

// usableSubscriptions loads a child's entitlements and filters to the
// ones that can back a check-in today, most recent start date first.
func usableSubscriptions(db *gorm.DB, childID int64, today time.Time) ([]model.Subscription, error) {
	var subs []model.Subscription
	if err := db.Preload("Packages").
		Where("child_id = ?", childID).
		Find(&subs).Error; err != nil {
		return nil, err
	}

	usable := subs[:0]
	for _, sub := range subs {
		if sub.Usable(today) {
			usable = append(usable, sub)
		}
	}
	sort.Slice(usable, func(i, j int) bool {
		if !usable[i].StartDate.Equal(usable[j].StartDate) {
			return usable[i].StartDate.After(usable[j].StartDate)
		}
		return usable[i].ID > usable[j].ID
	})
	return usable, nil
}

func (s *gormStore) SessionByID(ctx context.Context, id int64) (*model.CheckinSession, error) {
	return SessionByID(s.db.WithContext(ctx), id)
}

// SessionByID fetches a session with its child, subscription packages,
// and room. Exported with a *gorm.DB receiver argument so lifecycle
// transactions can reuse it.
func SessionByID(db *gorm.DB, id int64) (*model.CheckinSession, error) {
	var session model.CheckinSession
	if err := db.Preload("Child").
		Preload("Subscription").
		Preload("Subscription.Packages").
		Preload("Room").
		First(&session, id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// ActiveSessionForChild returns the child's current non-terminal
// session, or nil when the child is not on the premises.
func ActiveSessionForChild(db *gorm.DB, childID int64) (*model.CheckinSession, error) {
	var session model.CheckinSession
	err := db.Where("child_id = ? AND state IN ?", childID, model.NonTerminalStates).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// CountCheckedInRoom counts the sessions currently occupying a room.
// The count is re-evaluated on every call, never cached; a session may
// be excluded for edit-in-place capacity re-checks.
func CountCheckedInRoom(db *gorm.DB, roomID int64, excludeSessionID int64) (int64, error) {
	q := db.Model(&model.CheckinSession{}).
		Where("room_id = ? AND state = ?", roomID, model.StateCheckedIn)
	if excludeSessionID > 0 {
		q = q.Where("id <> ?", excludeSessionID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ActiveSessions lists all currently checked-in sessions for the
// reception dashboard.
func (s *gormStore) ActiveSessions(ctx context.Context) ([]model.CheckinSession, error) {
	var sessions []model.CheckinSession
	err := s.db.WithContext(ctx).
		Preload("Child").
		Preload("Subscription").
		Preload("Subscription.Packages").
		Preload("Room").
		Where("state = ?", model.StateCheckedIn).
		Order("checkin_time").
		Find(&sessions).Error
	return sessions, err
}

// Stats summarizes today's activity for the dashboard.
type Stats struct {
	ActiveCheckins  int64   `json:"active_checkins"`
	CompletedToday  int64   `json:"completed_today"`
	TotalToday      int64   `json:"total_today"`
	OvertimeRevenue float64 `json:"overtime_revenue_today"`
}

func (s *gormStore) DashboardStats(ctx context.Context, today time.Time) (Stats, error) {
	db := s.db.WithContext(ctx)
	dayStart := model.DateOf(today)
	dayEnd := dayStart.AddDate(0, 0, 1)

	var stats Stats
	if err := db.Model(&model.CheckinSession{}).
		Where("state = ?", model.StateCheckedIn).
		Count(&stats.ActiveCheckins).Error; err != nil {
		return stats, err
	}
	if err := db.Model(&model.CheckinSession{}).
		Where("state = ? AND checkout_time >= ? AND checkout_time < ?",
			model.StateCheckedOut, dayStart, dayEnd).
		Count(&stats.CompletedToday).Error; err != nil {
		return stats, err
	}
	if err := db.Model(&model.CheckinSession{}).
		Where("requested_at >= ? AND requested_at < ?", dayStart, dayEnd).
		Count(&stats.TotalToday).Error; err != nil {
		return stats, err
	}

	var revenue *float64
	if err := db.Model(&model.CheckinSession{}).
		Where("state = ? AND checkout_time >= ? AND checkout_time < ?",
			model.StateCheckedOut, dayStart, dayEnd).
		Select("SUM(extra_charge)").
		Scan(&revenue).Error; err != nil {
		return stats, err
	}
	if revenue != nil {
		stats.OvertimeRevenue = *revenue
	}
	return stats, nil
}

// ActivateDueSubscriptions promotes draft subscriptions whose window
// has opened. The guarded UPDATE makes repeated runs no-ops.
func (s *gormStore) ActivateDueSubscriptions(ctx context.Context, today time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("state = ? AND start_date <= ?", model.SubscriptionDraft, model.DateOf(today)).
		Update("state", model.SubscriptionActive)
	return res.RowsAffected, res.Error
}

// ExpireLapsedSubscriptions retires active subscriptions past their
// end date. Idempotent for the same reason.
func (s *gormStore) ExpireLapsedSubscriptions(ctx context.Context, today time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("state = ? AND end_date < ?", model.SubscriptionActive, model.DateOf(today)).
		Update("state", model.SubscriptionExpired)
	return res.RowsAffected, res.Error
}
