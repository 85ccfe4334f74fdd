package campaigns

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/replyhero/backend/internal/mailer"
	"github.com/replyhero/backend/internal/models"
	"github.com/replyhero/backend/internal/store"
)

type fakeMailer struct {
	sent    []mailer.Message
	failFor map[string]error // recipient -> error
}

func (f *fakeMailer) Send(ctx context.Context, msg mailer.Message) error {
	if err := f.failFor[msg.To]; err != nil {
		return err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func newSender(t *testing.T) (*Sender, sqlmock.Sqlmock, *fakeMailer, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	fm := &fakeMailer{}
	s := &Sender{
		Store:        store.NewCampaigns(db),
		Mailer:       fm,
		PublicOrigin: "https://app.example.com",
		SigningKey:   "testkey",
	}
	return s, mock, fm, db
}

const contactCols = "id, tenant_id, email, first_name, birthday, phone, unsubscribed_at, created_at"

func contactRows(t *testing.T) *sqlmock.Rows {
	t.Helper()
	return sqlmock.NewRows(strings.Split(contactCols, ", "))
}

var proTenant = models.Tenant{ID: "t1", Name: "Mario's Pizza", Contact: "mario@example.com", IsPro: true}

func TestSendBirthdays_MatchesOnlyTodaysBirthdays(t *testing.T) {
	s, mock, fm, db := newSender(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`SELECT tenant_id, enabled, message_text, offer_text, last_sent_date, updated_at\s+FROM public\.birthday_settings`).
		WithArgs("t1").
		WillReturnRows(birthdaySettingsRows().
			AddRow("t1", true, "Happy birthday {{first_name}}! {{offer}}", "10% off", nil, now))

	today := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT ` + contactCols + ` FROM public\.contacts`).
		WithArgs("t1").
		WillReturnRows(contactRows(t).
			AddRow("c1", "t1", "ana@example.com", "Ana", "1990-03-14", nil, nil, now).
			AddRow("c2", "t1", "bob@example.com", "Bob", "03-15", nil, nil, now).
			AddRow("c3", "t1", "cyn@example.com", "Cyn", "03/14", nil, nil, now).
			AddRow("c4", "t1", "dee@example.com", "Dee", nil, nil, nil, now))
	mock.ExpectExec(`UPDATE public\.birthday_settings SET last_sent_date`).
		WithArgs("t1", "2026-03-14").
		WillReturnResult(sqlmock.NewResult(0, 1))

	sent, err := s.SendBirthdays(context.Background(), proTenant, today)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sent != 2 {
		t.Fatalf("expected 2 sends got %d", sent)
	}
	got := []string{fm.sent[0].To, fm.sent[1].To}
	if got[0] != "ana@example.com" || got[1] != "cyn@example.com" {
		t.Fatalf("expected ana and cyn got %v", got)
	}
	if !strings.Contains(fm.sent[0].Body, "Happy birthday Ana! 10% off") {
		t.Fatalf("expected personalized body got %q", fm.sent[0].Body)
	}
	if fm.sent[0].ReplyTo != "mario@example.com" {
		t.Fatalf("expected tenant contact as reply-to got %q", fm.sent[0].ReplyTo)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestSendBirthdays_NotProIsNoop(t *testing.T) {
	s, mock, fm, db := newSender(t)
	defer db.Close()

	free := proTenant
	free.IsPro = false
	sent, err := s.SendBirthdays(context.Background(), free, time.Now())
	if err != nil || sent != 0 {
		t.Fatalf("expected silent noop got sent=%d err=%v", sent, err)
	}
	if len(fm.sent) != 0 {
		t.Fatalf("expected no mail sent")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expected no queries: %v", err)
	}
}

func TestSendBirthdays_DisabledOrEmptyMessageIsNoop(t *testing.T) {
	s, mock, fm, db := newSender(t)
	defer db.Close()

	mock.ExpectQuery(`FROM public\.birthday_settings`).
		WithArgs("t1").
		WillReturnRows(birthdaySettingsRows().
			AddRow("t1", true, "   ", "", nil, time.Now()))

	sent, err := s.SendBirthdays(context.Background(), proTenant, time.Now())
	if err != nil || sent != 0 || len(fm.sent) != 0 {
		t.Fatalf("expected noop for blank message got sent=%d err=%v", sent, err)
	}
}

func TestSendBirthdays_SecondPassSameDayIsNoop(t *testing.T) {
	s, mock, fm, db := newSender(t)
	defer db.Close()

	now := time.Now()
	firstTick := time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC)
	secondTick := firstTick.Add(time.Hour)

	mock.ExpectQuery(`FROM public\.birthday_settings`).
		WithArgs("t1").
		WillReturnRows(birthdaySettingsRows().
			AddRow("t1", true, "Happy birthday {{first_name}}!", "", nil, now))
	mock.ExpectQuery(`FROM public\.contacts`).
		WithArgs("t1").
		WillReturnRows(contactRows(t).
			AddRow("c1", "t1", "ana@example.com", "Ana", "1990-03-14", nil, nil, now))
	mock.ExpectExec(`UPDATE public\.birthday_settings SET last_sent_date`).
		WithArgs("t1", "2026-03-14").
		WillReturnResult(sqlmock.NewResult(0, 1))

	sent, err := s.SendBirthdays(context.Background(), proTenant, firstTick)
	if err != nil || sent != 1 {
		t.Fatalf("first pass expected 1 send got sent=%d err=%v", sent, err)
	}

	// The second tick of the same day sees the recorded date and stops
	// before touching the contact list.
	mock.ExpectQuery(`FROM public\.birthday_settings`).
		WithArgs("t1").
		WillReturnRows(birthdaySettingsRows().
			AddRow("t1", true, "Happy birthday {{first_name}}!", "", firstTick, now))

	sent, err = s.SendBirthdays(context.Background(), proTenant, secondTick)
	if err != nil || sent != 0 {
		t.Fatalf("second pass expected noop got sent=%d err=%v", sent, err)
	}
	if len(fm.sent) != 1 {
		t.Fatalf("expected exactly one email across both passes got %d", len(fm.sent))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestSendEventCampaign_MarksSentDespitePartialFailure(t *testing.T) {
	s, mock, fm, db := newSender(t)
	defer db.Close()
	fm.failFor = map[string]error{"bob@example.com": errors.New("bounce")}

	now := time.Now()
	mock.ExpectQuery(`FROM public\.event_campaigns WHERE id = \$1`).
		WithArgs("ev1").
		WillReturnRows(eventRows().
			AddRow("ev1", "t1", "mothers-day", 2026, "confirmed", "Treat mom! {{offer}}", "free dessert", 7, now, nil, now, now))
	mock.ExpectQuery(`FROM public\.contacts`).
		WithArgs("t1").
		WillReturnRows(contactRows(t).
			AddRow("c1", "t1", "ana@example.com", "Ana", nil, nil, nil, now).
			AddRow("c2", "t1", "bob@example.com", "Bob", nil, nil, nil, now))
	mock.ExpectExec(`UPDATE public\.event_campaigns`).
		WithArgs("ev1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	sent, err := s.SendEventCampaign(context.Background(), proTenant, "ev1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sent != 1 {
		t.Fatalf("expected 1 delivered got %d", sent)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("campaign must be marked sent after the pass: %v", err)
	}
}

func TestSendEventCampaign_ZeroAudienceStillCompletes(t *testing.T) {
	s, mock, fm, db := newSender(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`FROM public\.event_campaigns WHERE id = \$1`).
		WithArgs("ev1").
		WillReturnRows(eventRows().
			AddRow("ev1", "t1", "christmas", 2026, "confirmed", "Merry!", "", 3, now, nil, now, now))
	mock.ExpectQuery(`FROM public\.contacts`).
		WithArgs("t1").
		WillReturnRows(contactRows(t))
	mock.ExpectExec(`UPDATE public\.event_campaigns`).
		WithArgs("ev1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	sent, err := s.SendEventCampaign(context.Background(), proTenant, "ev1")
	if err != nil || sent != 0 {
		t.Fatalf("expected clean zero-audience completion got sent=%d err=%v", sent, err)
	}
	if len(fm.sent) != 0 {
		t.Fatalf("expected no mail")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestSendEventCampaign_UnconfirmedIsNoop(t *testing.T) {
	s, mock, fm, db := newSender(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`FROM public\.event_campaigns WHERE id = \$1`).
		WithArgs("ev1").
		WillReturnRows(eventRows().
			AddRow("ev1", "t1", "halloween", 2026, "pending", "Boo", "", 0, nil, nil, now, now))

	sent, err := s.SendEventCampaign(context.Background(), proTenant, "ev1")
	if err != nil || sent != 0 || len(fm.sent) != 0 {
		t.Fatalf("expected noop for unconfirmed campaign got sent=%d err=%v", sent, err)
	}
}

func TestSendOneOff_AlreadySentIsNoop(t *testing.T) {
	s, mock, fm, db := newSender(t)
	defer db.Close()

	campaign := models.OneOffCampaign{ID: "oo1", TenantID: "t1", Status: models.OneOffSent}
	sent, err := s.SendOneOff(context.Background(), proTenant, campaign)
	if err != nil || sent != 0 || len(fm.sent) != 0 {
		t.Fatalf("expected noop for sent campaign got sent=%d err=%v", sent, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expected no queries: %v", err)
	}
}

func TestSendOneOff_SendsAndMarks(t *testing.T) {
	s, mock, fm, db := newSender(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`FROM public\.contacts`).
		WithArgs("t1").
		WillReturnRows(contactRows(t).
			AddRow("c1", "t1", "ana@example.com", "Ana", nil, nil, nil, now))
	mock.ExpectExec(`UPDATE public\.oneoff_campaigns`).
		WithArgs("oo1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	campaign := models.OneOffCampaign{
		ID: "oo1", TenantID: "t1", SendDate: "2026-09-01",
		Subject: "Fall menu is here", Body: "Hi {{first_name}}, come try it.",
		Status: models.OneOffScheduled,
	}
	sent, err := s.SendOneOff(context.Background(), proTenant, campaign)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sent != 1 || fm.sent[0].Subject != "Fall menu is here" {
		t.Fatalf("expected one send with campaign subject got sent=%d msgs=%+v", sent, fm.sent)
	}
	if !strings.Contains(fm.sent[0].Body, "Hi Ana, come try it.") {
		t.Fatalf("expected personalized body got %q", fm.sent[0].Body)
	}
	if !strings.Contains(fm.sent[0].Body, "Unsubscribe") {
		t.Fatalf("expected unsubscribe footer got %q", fm.sent[0].Body)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestUnsubscribeToken_Deterministic(t *testing.T) {
	a := UnsubscribeToken("key", "t1", "Ana@Example.com ")
	b := UnsubscribeToken("key", "t1", "ana@example.com")
	if a != b {
		t.Fatalf("token must normalize case and whitespace: %q vs %q", a, b)
	}
	if UnsubscribeToken("other", "t1", "ana@example.com") == a {
		t.Fatalf("token must depend on the signing key")
	}
}

func birthdaySettingsRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"tenant_id", "enabled", "message_text", "offer_text",
		"last_sent_date", "updated_at"})
}

func eventRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "tenant_id", "event_key", "event_year", "status",
		"message_text", "offer_text", "send_days_before", "confirmed_at", "sent_at",
		"created_at", "updated_at"})
}
