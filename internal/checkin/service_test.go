package checkin

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"kidsclub-backend/internal/model"
	"kidsclub-backend/internal/otp"
	"kidsclub-backend/internal/store"
)

type sentOTP struct {
	sessionID int64
	purpose   string
	code      string
}

// recordingNotifier captures dispatched OTPs instead of delivering them.
type recordingNotifier struct {
	sent []sentOTP
}

func (n *recordingNotifier) NotifyOTP(session *model.CheckinSession, purpose, code string) {
	n.sent = append(n.sent, sentOTP{sessionID: session.ID, purpose: purpose, code: code})
}

type createdInvoice struct {
	payer       string
	description string
	amount      float64
	kind        string
}

// fakeConnector records invoice requests and hands out sequential ids.
type fakeConnector struct {
	invoices []createdInvoice
	nextID   int64
}

func (f *fakeConnector) CreateInvoice(ctx context.Context, payer, description string, amount float64, kind string) (int64, error) {
	f.invoices = append(f.invoices, createdInvoice{payer: payer, description: description, amount: amount, kind: kind})
	f.nextID++
	return f.nextID, nil
}

// fixture wires a service against an in-memory database with a
// controllable clock.
type fixture struct {
	t         *testing.T
	db        *gorm.DB
	store     store.Store
	svc       *Service
	notifier  *recordingNotifier
	connector *fakeConnector
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gormDB.AutoMigrate(
		&model.Child{},
		&model.Package{},
		&model.Subscription{},
		&model.Room{},
		&model.CheckinSession{},
		&model.Invoice{},
		&model.PushSubscription{},
	))

	f := &fixture{
		t:         t,
		db:        gormDB,
		store:     store.NewGormStore(gormDB),
		notifier:  &recordingNotifier{},
		connector: &fakeConnector{},
		now:       time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(f.store, f.connector, f.notifier, otp.DefaultTTL)
	f.svc.SetClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

// newMember seeds a child with a paid, active subscription granting the
// given allowance.
func (f *fixture) newMember(name string, freeMinutes, marginMinutes int, rate float64, visits int) *model.Child {
	f.t.Helper()
	child := &model.Child{
		Name:          name,
		DateOfBirth:   time.Date(2021, 1, 10, 0, 0, 0, 0, time.UTC),
		GuardianName:  name + " Guardian",
		GuardianEmail: strings.ToLower(name) + "@example.com",
	}
	require.NoError(f.t, f.store.CreateChild(context.Background(), child))

	pkg := model.Package{
		Name:                 name + " Plan",
		Price:                200,
		Currency:             "USD",
		NumberOfVisits:       visits,
		ValidityPeriod:       model.ValidityMonthly,
		DailyFreeMinutes:     freeMinutes,
		MarginMinutes:        marginMinutes,
		ExtraChargePerMinute: rate,
		Active:               true,
	}
	require.NoError(f.t, f.db.Create(&pkg).Error)

	sub := model.Subscription{
		ChildID:       child.ID,
		StartDate:     model.DateOf(f.now.AddDate(0, 0, -1)),
		EndDate:       model.DateOf(f.now.AddDate(0, 0, 29)),
		State:         model.SubscriptionActive,
		PaymentStatus: model.PaymentPaid,
		Price:         pkg.Price,
		Currency:      pkg.Currency,
		TotalVisits:   visits,
		Packages:      []model.Package{pkg},
	}
	require.NoError(f.t, f.db.Create(&sub).Error)
	return child
}

func (f *fixture) newRoom(number string, capacity int) *model.Room {
	f.t.Helper()
	room := &model.Room{Name: "Room " + number, RoomNumber: number, Capacity: capacity}
	require.NoError(f.t, f.store.CreateRoom(context.Background(), room))
	return room
}

// checkIn drives a child through request and OTP verification.
func (f *fixture) checkIn(child *model.Child, roomID *int64) *model.CheckinSession {
	f.t.Helper()
	ctx := context.Background()
	session, err := f.svc.RequestCheckin(ctx, child.ID, roomID)
	require.NoError(f.t, err)
	verified, err := f.svc.VerifyCheckinOTP(ctx, session.ID, session.CheckinOTP.Code)
	require.NoError(f.t, err)
	return verified
}

func (f *fixture) subscription(childID int64) model.Subscription {
	f.t.Helper()
	var sub model.Subscription
	require.NoError(f.t, f.db.First(&sub, "child_id = ?", childID).Error)
	return sub
}

func TestRequestCheckin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	child := f.newMember("Lina", 60, 10, 5, 10)
	room := f.newRoom("R1", 10)

	session, err := f.svc.RequestCheckin(ctx, child.ID, &room.ID)
	require.NoError(t, err)

	assert.Equal(t, model.StatePendingCheckinOTP, session.State)
	assert.Equal(t, fmt.Sprintf("CHK%05d", session.ID), session.Reference)
	assert.Len(t, session.CheckinOTP.Code, 6)
	assert.Nil(t, session.CheckinTime)
	assert.True(t, f.now.Equal(session.RequestedAt))

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, PurposeCheckin, f.notifier.sent[0].purpose)
	assert.Equal(t, session.CheckinOTP.Code, f.notifier.sent[0].code)

	// No visit is consumed until the OTP verifies.
	assert.Equal(t, 0, f.subscription(child.ID).VisitsUsed)
}

func TestRequestCheckinByBarcode(t *testing.T) {
	f := newFixture(t)
	child := f.newMember("Omar", 60, 0, 5, 10)

	session, err := f.svc.RequestCheckinByBarcode(context.Background(), child.BarcodeID, nil)
	require.NoError(t, err)
	assert.Equal(t, child.ID, session.ChildID)
}

func TestRequestCheckinWithoutEntitlement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	child := &model.Child{Name: "Walk-in", DateOfBirth: time.Date(2022, 2, 2, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, f.store.CreateChild(ctx, child))

	_, err := f.svc.RequestCheckin(ctx, child.ID, nil)
	assert.ErrorIs(t, err, ErrNoActiveEntitlement)
}

func TestRequestCheckinExhaustedVisits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	child := f.newMember("Sara", 60, 0, 5, 1)

	session := f.checkIn(child, nil)
	f.advance(30 * time.Minute)
	session, err := f.svc.RequestCheckout(ctx, session.ID)
	require.NoError(t, err)
	_, err = f.svc.VerifyCheckoutOTP(ctx, session.ID, session.CheckoutOTP.Code)
	require.NoError(t, err)

	// The single visit is spent.
	_, err = f.svc.RequestCheckin(ctx, child.ID, nil)
	assert.ErrorIs(t, err, ErrNoActiveEntitlement)
}

func TestRequestCheckinWhileAlreadyActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	child := f.newMember("Nadia", 60, 0, 5, 10)

	_, err := f.svc.RequestCheckin(ctx, child.ID, nil)
	require.NoError(t, err)

	// Even a pending session blocks a second request.
	_, err = f.svc.RequestCheckin(ctx, child.ID, nil)
	assert.ErrorIs(t, err, ErrAlreadyCheckedIn)
}

func TestRoomCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.newRoom("R1", 2)

	first := f.newMember("First", 60, 0, 0, 10)
	second := f.newMember("Second", 60, 0, 0, 10)
	third := f.newMember("Third", 60, 0, 0, 10)

	firstSession := f.checkIn(first, &room.ID)
	f.checkIn(second, &room.ID)

	_, err := f.svc.RequestCheckin(ctx, third.ID, &room.ID)
	assert.ErrorIs(t, err, ErrRoomFull)

	// A checkout releases the slot.
	f.advance(30 * time.Minute)
	session, err := f.svc.RequestCheckout(ctx, firstSession.ID)
	require.NoError(t, err)
	_, err = f.svc.VerifyCheckoutOTP(ctx, session.ID, session.CheckoutOTP.Code)
	require.NoError(t, err)

	_, err = f.svc.RequestCheckin(ctx, third.ID, &room.ID)
	assert.NoError(t, err)
}

func TestVerifyCheckinOTP(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	child := f.newMember("Lina", 60, 10, 5, 10)

	session, err := f.svc.RequestCheckin(ctx, child.ID, nil)
	require.NoError(t, err)

	requestedAt := f.now
	f.advance(2 * time.Minute)

	verified, err := f.svc.VerifyCheckinOTP(ctx, session.ID, session.CheckinOTP.Code)
	require.NoError(t, err)
	assert.Equal(t, model.StateCheckedIn, verified.State)
	require.NotNil(t, verified.CheckinTime)
	// The confirmed check-in time is the verification moment.
	assert.True(t, requestedAt.Add(2*time.Minute).Equal(*verified.CheckinTime))
	assert.True(t, verified.CheckinOTP.Verified)

	assert.Equal(t, 1, f.subscription(child.ID).VisitsUsed)
}

func TestVerifyCheckinOTPMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	child := f.newMember("Lina", 60, 0, 5, 10)

	session, err := f.svc.RequestCheckin(ctx, child.ID, nil)
	require.NoError(t, err)

	wrong := "000000"
	if session.CheckinOTP.Code == wrong {
		wrong = "000001"
	}
	_, err = f.svc.VerifyCheckinOTP(ctx, session.ID, wrong)
	assert.ErrorIs(t, err, otp.ErrOtpMismatch)

	// The failed attempt changes nothing; the right code still works.
	verified, err := f.svc.VerifyCheckinOTP(ctx, session.ID, session.CheckinOTP.Code)
	require.NoError(t, err)
	assert.Equal(t, model.StateCheckedIn, verified.State)
}

func TestVerifyCheckinOTPExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	child := f.newMember("Lina", 60, 0, 5, 10)

	session, err := f.svc.RequestCheckin(ctx, child.ID, nil)
	require.NoError(t, err)

	// Valid at exactly the code lifetime; expiry is strictly after.
	f.advance(otp.DefaultTTL)
	_, err = f.svc.VerifyCheckinOTP(ctx, session.ID, session.CheckinOTP.Code)
	assert.NoError(t, err)
}

func TestExpiredOTPAndResend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	child := f.newMember("Lina", 60, 0, 5, 10)

	session, err := f.svc.RequestCheckin(ctx, child.ID, nil)
	require.NoError(t, err)

	f.advance(otp.DefaultTTL + time.Second)
	_, err = f.svc.VerifyCheckinOTP(ctx, session.ID, session.CheckinOTP.Code)
	assert.ErrorIs(t, err, otp.ErrOtpExpired)

	// A resend supersedes the stale code and restarts the lifetime.
	resent, err := f.svc.ResendCheckinOTP(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, resent.CheckinOTP.SentAt)
	assert.True(t, f.now.Equal(*resent.CheckinOTP.SentAt))

	_, err = f.svc.VerifyCheckinOTP(ctx, session.ID, session.CheckinOTP.Code)
	assert.ErrorIs(t, err, otp.ErrOtpMismatch)

	verified, err := f.svc.VerifyCheckinOTP(ctx, session.ID, resent.CheckinOTP.Code)
	require.NoError(t, err)
	assert.Equal(t, model.StateCheckedIn, verified.State)
}

func TestResendNotAllowedAfterVerification(t *testing.T) {
	f := newFixture(t)
	child := f.newMember("Lina", 60, 0, 5, 10)
	session := f.checkIn(child, nil)

	_, err := f.svc.ResendCheckinOTP(context.Background(), session.ID)
	assert.ErrorIs(t, err, ErrResendNotAllowed)
}

func TestVerifyWithoutIssuedOTP(t *testing.T) {
	f := newFixture(t)
	child := f.newMember("Lina", 60, 0, 5, 10)
	session := f.checkIn(child, nil)

	_, err := f.svc.VerifyCheckinOTP(context.Background(), session.ID, session.CheckinOTP.Code)
	assert.ErrorIs(t, err, otp.ErrNoOtpIssued)

	_, err = f.svc.VerifyCheckoutOTP(context.Background(), session.ID, "123456")
	assert.ErrorIs(t, err, otp.ErrNoOtpIssued)
}

func TestCheckoutWithinAllowance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	child := f.newMember("Lina", 60, 10, 5, 10)
	session := f.checkIn(child, nil)

	f.advance(50 * time.Minute)

	// Within the allowance the checkout OTP goes out immediately.
	session, err := f.svc.RequestCheckout(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatePendingCheckoutOTP, session.State)
	assert.Len(t, session.CheckoutOTP.Code, 6)

	final, err := f.svc.VerifyCheckoutOTP(ctx, session.ID, session.CheckoutOTP.Code)
	require.NoError(t, err)
	assert.Equal(t, model.StateCheckedOut, final.State)
	assert.Equal(t, 50, final.DurationMinutes)
	assert.Equal(t, 50, final.FreeMinutesUsed)
	assert.Equal(t, 0, final.ExtraMinutes)
	assert.Equal(t, float64(0), final.ExtraCharge)
	assert.Nil(t, final.ExtraInvoiceID)
	assert.Empty(t, f.connector.invoices)
}

func TestCheckoutWithOvertime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	child := f.newMember("Lina", 60, 10, 5, 10)
	session := f.checkIn(child, nil)

	f.advance(90 * time.Minute)

	// Overtime halts the flow until payment is confirmed.
	session, err := f.svc.RequestCheckout(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatePendingPayment, session.State)
	assert.Empty(t, session.CheckoutOTP.Code)

	session, err = f.svc.ConfirmPayment(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatePendingCheckoutOTP, session.State)
	assert.True(t, session.PaymentConfirmed)
	assert.Len(t, session.CheckoutOTP.Code, 6)

	final, err := f.svc.VerifyCheckoutOTP(ctx, session.ID, session.CheckoutOTP.Code)
	require.NoError(t, err)
	assert.Equal(t, model.StateCheckedOut, final.State)
	assert.Equal(t, 90, final.DurationMinutes)
	assert.Equal(t, 70, final.FreeMinutesUsed)
	assert.Equal(t, 20, final.ExtraMinutes)
	assert.Equal(t, float64(100), final.ExtraCharge)

	require.NotNil(t, final.ExtraInvoiceID)
	require.Len(t, f.connector.invoices, 1)
	invoice := f.connector.invoices[0]
	assert.Equal(t, child.GuardianName, invoice.payer)
	assert.Equal(t, float64(100), invoice.amount)
	assert.Equal(t, model.InvoiceOvertime, invoice.kind)
	assert.Contains(t, invoice.description, child.Name)
	assert.Contains(t, invoice.description, "20 minutes")
}

func TestConfirmPaymentNotRequired(t *testing.T) {
	f := newFixture(t)
	child := f.newMember("Lina", 60, 0, 5, 10)
	session := f.checkIn(child, nil)

	_, err := f.svc.ConfirmPayment(context.Background(), session.ID)
	assert.ErrorIs(t, err, ErrPaymentNotRequired)
}

func TestRequestCheckoutRequiresCheckedIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	child := f.newMember("Lina", 60, 0, 5, 10)

	session, err := f.svc.RequestCheckin(ctx, child.ID, nil)
	require.NoError(t, err)

	_, err = f.svc.RequestCheckout(ctx, session.ID)
	assert.ErrorIs(t, err, ErrNotCheckedIn)
}

func TestUsageLiveTimer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	child := f.newMember("Lina", 60, 10, 5, 10)
	session := f.checkIn(child, nil)

	f.advance(30 * time.Minute)
	_, usage, err := f.svc.Usage(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, usage.DurationMinutes)
	assert.Equal(t, 0, usage.ExtraMinutes)

	f.advance(60 * time.Minute)
	_, usage, err = f.svc.Usage(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 90, usage.DurationMinutes)
	assert.Equal(t, 20, usage.ExtraMinutes)
	assert.Equal(t, float64(100), usage.ExtraCharge)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	child := f.newMember("Lina", 60, 0, 5, 10)
	session := f.checkIn(child, nil)

	cancelled, err := f.svc.Cancel(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateCancelled, cancelled.State)

	// Cancellation does not refund the consumed visit.
	assert.Equal(t, 1, f.subscription(child.ID).VisitsUsed)

	// The child may start over.
	_, err = f.svc.RequestCheckin(ctx, child.ID, nil)
	assert.NoError(t, err)

	_, err = f.svc.Cancel(ctx, session.ID)
	assert.ErrorIs(t, err, ErrSessionClosed)
}
