package notify_test

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artsia/hr-portal/absence"
	"github.com/artsia/hr-portal/notify"
	"github.com/artsia/hr-portal/store/memory"
)

// scriptedSender answers per endpoint.
type scriptedSender struct {
	mu       sync.Mutex
	results  map[string]error
	payloads [][]byte
}

func (s *scriptedSender) Push(_ context.Context, sub absence.PushSubscription, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, payload)
	return s.results[sub.Endpoint]
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *recordingMailer) SendMail(_ context.Context, to, subject, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to+"|"+subject)
	return nil
}

var fixedNow = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T, sender notify.PushSender, mailer notify.Mailer) (*notify.Service, *memory.Memory, absence.Employee) {
	t.Helper()
	st := memory.NewMemory()
	emp, err := st.CreateEmployee(context.Background(), absence.Employee{
		Name: "Luca", Email: "Luca@Artsia.it", Role: absence.RoleEmployee, Team: absence.TeamSviluppo,
	})
	require.NoError(t, err)

	nop := zerolog.Nop()
	svc := notify.NewService(notify.Deps{
		Store:  st,
		Sender: sender,
		Mailer: mailer,
		Logger: &nop,
		Now:    func() time.Time { return fixedNow },
	})
	return svc, st, emp
}

func subscribe(t *testing.T, st *memory.Memory, userID int64, endpoint string) absence.PushSubscription {
	t.Helper()
	sub, err := st.UpsertSubscription(context.Background(), absence.PushSubscription{
		EmployeeID: userID, Endpoint: endpoint, P256dh: "k", Auth: "a",
		Platform: absence.PlatformWeb, LastUsedAt: fixedNow.AddDate(0, -1, 0),
	})
	require.NoError(t, err)
	return sub
}

func TestSend_PersistsAndFansOut(t *testing.T) {
	// GIVEN: three devices, one expired, one failing
	sender := &scriptedSender{results: map[string]error{
		"https://push/gone":   notify.ErrSubscriptionGone,
		"https://push/broken": errors.New("timeout"),
	}}
	svc, st, emp := setup(t, sender, nil)
	ok := subscribe(t, st, emp.ID, "https://push/ok")
	subscribe(t, st, emp.ID, "https://push/gone")
	broken := subscribe(t, st, emp.ID, "https://push/broken")

	// WHEN
	rel := int64(42)
	res, err := svc.Send(context.Background(), absence.Message{
		UserID: emp.ID, Type: absence.NotifyFerieApproved,
		Title: "Richiesta approvata", Body: "ok", RelatedRequestID: &rel, URL: "/assenze",
	})

	// THEN: stored, one push delivered, expired device pruned
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.PushSent)

	stored := st.Notifications(emp.ID)
	require.Len(t, stored, 1)
	assert.Equal(t, absence.NotifyFerieApproved, stored[0].Type)
	assert.False(t, stored[0].Read)

	subs, err := st.ListSubscriptions(context.Background(), emp.ID)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	for _, s := range subs {
		switch s.ID {
		case ok.ID:
			assert.Equal(t, fixedNow, s.LastUsedAt, "delivered subscription is touched")
		case broken.ID:
			assert.NotEqual(t, fixedNow, s.LastUsedAt, "failed subscription is kept but not touched")
		default:
			t.Fatalf("unexpected subscription %d", s.ID)
		}
	}

	var p notify.Payload
	require.NoError(t, json.Unmarshal(sender.payloads[0], &p))
	assert.Equal(t, stored[0].ID, p.NotificationID)
	assert.Equal(t, "/assenze", p.URL)
}

func TestSend_NoSenderStillPersists(t *testing.T) {
	svc, st, emp := setup(t, nil, nil)
	res, err := svc.Send(context.Background(), absence.Message{UserID: emp.ID, Type: absence.NotifyPermessoRequest, Title: "x"})
	require.NoError(t, err)
	assert.Equal(t, absence.Delivery{Success: true}, res)
	assert.Len(t, st.Notifications(emp.ID), 1)
}

func TestSend_MailsDecisionsOnly(t *testing.T) {
	mailer := &recordingMailer{}
	svc, _, emp := setup(t, nil, mailer)
	ctx := context.Background()

	_, err := svc.Send(ctx, absence.Message{UserID: emp.ID, Type: absence.NotifyFerieRequest, Title: "Nuova richiesta"})
	require.NoError(t, err)
	_, err = svc.Send(ctx, absence.Message{UserID: emp.ID, Type: absence.NotifyPermessoRejected, Title: "Richiesta rifiutata"})
	require.NoError(t, err)

	assert.Equal(t, []string{"luca@artsia.it|Richiesta rifiutata"}, mailer.sent)
}

func TestSend_ManyDevicesConcurrently(t *testing.T) {
	var calls atomic.Int32
	sender := senderFunc(func(context.Context, absence.PushSubscription, []byte) error {
		calls.Add(1)
		time.Sleep(5 * time.Millisecond)
		return nil
	})
	svc, st, emp := setup(t, sender, nil)
	for i := 0; i < 20; i++ {
		subscribe(t, st, emp.ID, "https://push/"+string(rune('a'+i)))
	}

	res, err := svc.Send(context.Background(), absence.Message{UserID: emp.ID, Type: absence.NotifyFerieRequest})
	require.NoError(t, err)
	assert.Equal(t, 20, res.PushSent)
	assert.Equal(t, int32(20), calls.Load())
}

type senderFunc func(ctx context.Context, sub absence.PushSubscription, payload []byte) error

func (f senderFunc) Push(ctx context.Context, sub absence.PushSubscription, payload []byte) error {
	return f(ctx, sub, payload)
}

// =============================================================================
// WEB PUSH
// =============================================================================

func browserSubscription(t *testing.T, endpoint string) absence.PushSubscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)
	return absence.PushSubscription{
		ID:       1,
		Endpoint: endpoint,
		P256dh:   base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		Auth:     base64.RawURLEncoding.EncodeToString(auth),
	}
}

func webPushSender(t *testing.T) *notify.WebPush {
	t.Helper()
	priv, pub, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)
	return notify.NewWebPush(notify.WebPushConfig{
		PublicKey: pub, PrivateKey: priv, Subject: "mailto:hr@artsia.it", Timeout: 2 * time.Second,
	})
}

func TestWebPush_StatusMapping(t *testing.T) {
	var status atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("Authorization"), "VAPID header")
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	wp := webPushSender(t)
	sub := browserSubscription(t, srv.URL+"/push/abc")
	ctx := context.Background()

	status.Store(http.StatusCreated)
	assert.NoError(t, wp.Push(ctx, sub, []byte(`{"title":"ciao"}`)))

	status.Store(http.StatusGone)
	assert.ErrorIs(t, wp.Push(ctx, sub, []byte(`{}`)), notify.ErrSubscriptionGone)

	status.Store(http.StatusNotFound)
	assert.ErrorIs(t, wp.Push(ctx, sub, []byte(`{}`)), notify.ErrSubscriptionGone)

	status.Store(http.StatusTooManyRequests)
	err := wp.Push(ctx, sub, []byte(`{}`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, notify.ErrSubscriptionGone)
}

func TestWebPush_BreakerOpensOnRepeatedFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	wp := webPushSender(t)
	sub := browserSubscription(t, srv.URL)
	for i := 0; i < 10; i++ {
		require.Error(t, wp.Push(context.Background(), sub, []byte(`{}`)))
	}

	err := wp.Push(context.Background(), sub, []byte(`{}`))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(10), hits.Load(), "open breaker does not reach the push service")
	assert.Equal(t, "open", wp.State())
}

// =============================================================================
// SES
// =============================================================================

type fakeSES struct {
	input *ses.SendEmailInput
}

func (f *fakeSES) SendEmail(_ context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = in
	return &ses.SendEmailOutput{}, nil
}

func TestSESMailer_BuildsInput(t *testing.T) {
	client := &fakeSES{}
	m := notify.NewSESMailer(client, "hr@artsia.it")

	require.NoError(t, m.SendMail(context.Background(), "luca@artsia.it", "Richiesta approvata", "corpo"))
	require.NotNil(t, client.input)
	assert.Equal(t, "hr@artsia.it", *client.input.Source)
	assert.Equal(t, []string{"luca@artsia.it"}, client.input.Destination.ToAddresses)
	assert.Equal(t, "Richiesta approvata", *client.input.Message.Subject.Data)
	assert.Contains(t, *client.input.Message.Body.Text.Data, "corpo")
}
