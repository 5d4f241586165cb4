package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/GlebRadaev/casino-wallet/internal/domain"
	"github.com/GlebRadaev/casino-wallet/pkg/clients"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testURL = "http://tg.local/botTOKEN/sendMessage"

func NewMockTelegram(t *testing.T) (*TelegramSink, *clients.MockHTTPClientI, *[]time.Duration) {
	ctrl := gomock.NewController(t)
	client := clients.NewMockHTTPClientI(ctrl)
	sink := NewTelegramSink(client, "http://tg.local", "TOKEN", "-100500")

	var waits []time.Duration
	sink.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return sink, client, &waits
}

func TestTelegramSink_Send(t *testing.T) {
	sink, client, _ := NewMockTelegram(t)
	event := NewEvent(withdrawalEvent(), time.Now())

	client.EXPECT().Post(gomock.Any(), testURL, gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, headers http.Header, body []byte) (int, []byte, http.Header, error) {
			assert.Equal(t, "application/json", headers.Get("Content-Type"))
			var msg telegramMessage
			require.NoError(t, json.Unmarshal(body, &msg))
			assert.Equal(t, "-100500", msg.ChatID)
			assert.Contains(t, msg.Text, "Withdrawal request #7")
			assert.Contains(t, msg.Text, "amount: 50.00")
			assert.Contains(t, msg.Text, "system: card")
			return http.StatusOK, []byte(`{"ok":true}`), nil, nil
		})

	assert.NoError(t, sink.Send(context.Background(), event))
}

func TestTelegramSink_SkipsOtherEvents(t *testing.T) {
	sink, _, _ := NewMockTelegram(t)
	le := withdrawalEvent()
	le.Type = domain.EventDeposit

	assert.NoError(t, sink.Send(context.Background(), NewEvent(le, time.Now())))
}

func TestTelegramSink_SendText(t *testing.T) {
	tests := []struct {
		name          string
		responses     []func() (int, []byte, http.Header, error)
		expectedWaits []time.Duration
		expectedErr   error
		wantErr       bool
	}{
		{
			name: "retries transport error then succeeds",
			responses: []func() (int, []byte, http.Header, error){
				func() (int, []byte, http.Header, error) { return 0, nil, nil, errors.New("connection refused") },
				func() (int, []byte, http.Header, error) { return http.StatusOK, nil, nil, nil },
			},
			expectedWaits: []time.Duration{time.Second},
		},
		{
			name: "honours Retry-After header on 429",
			responses: []func() (int, []byte, http.Header, error){
				func() (int, []byte, http.Header, error) {
					return http.StatusTooManyRequests, nil, http.Header{"Retry-After": []string{"5"}}, nil
				},
				func() (int, []byte, http.Header, error) { return http.StatusOK, nil, nil, nil },
			},
			expectedWaits: []time.Duration{5 * time.Second},
		},
		{
			name: "reads retry_after from 429 body",
			responses: []func() (int, []byte, http.Header, error){
				func() (int, []byte, http.Header, error) {
					return http.StatusTooManyRequests, []byte(`{"ok":false,"parameters":{"retry_after":3}}`), http.Header{}, nil
				},
				func() (int, []byte, http.Header, error) { return http.StatusOK, nil, nil, nil },
			},
			expectedWaits: []time.Duration{3 * time.Second},
		},
		{
			name: "gives up after max retries on server errors",
			responses: []func() (int, []byte, http.Header, error){
				func() (int, []byte, http.Header, error) { return http.StatusBadGateway, nil, nil, nil },
				func() (int, []byte, http.Header, error) { return http.StatusBadGateway, nil, nil, nil },
				func() (int, []byte, http.Header, error) { return http.StatusBadGateway, nil, nil, nil },
			},
			expectedWaits: []time.Duration{time.Second, 2 * time.Second},
			expectedErr:   ErrUnexpectedStatus,
			wantErr:       true,
		},
		{
			name: "does not retry client errors",
			responses: []func() (int, []byte, http.Header, error){
				func() (int, []byte, http.Header, error) {
					return http.StatusBadRequest, []byte(`{"ok":false,"description":"chat not found"}`), nil, nil
				},
			},
			expectedErr: ErrUnexpectedStatus,
			wantErr:     true,
		},
		{
			name: "fails after max retries on transport error",
			responses: []func() (int, []byte, http.Header, error){
				func() (int, []byte, http.Header, error) { return 0, nil, nil, assert.AnError },
				func() (int, []byte, http.Header, error) { return 0, nil, nil, assert.AnError },
				func() (int, []byte, http.Header, error) { return 0, nil, nil, assert.AnError },
			},
			expectedWaits: []time.Duration{time.Second, 2 * time.Second},
			expectedErr:   assert.AnError,
			wantErr:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink, client, waits := NewMockTelegram(t)

			var calls []any
			for _, resp := range tt.responses {
				calls = append(calls, client.EXPECT().
					Post(gomock.Any(), testURL, gomock.Any(), gomock.Any()).
					DoAndReturn(func(context.Context, string, http.Header, []byte) (int, []byte, http.Header, error) {
						return resp()
					}))
			}
			gomock.InOrder(calls...)

			err := sink.SendText(context.Background(), "hello")
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expectedWaits, *waits)
		})
	}
}

func TestTelegramSink_CanceledContext(t *testing.T) {
	sink, _, _ := NewMockTelegram(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, sink.SendText(ctx, "hello"), context.Canceled)
}

func TestSleepCtx(t *testing.T) {
	assert.NoError(t, sleepCtx(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepCtx(ctx, time.Hour), context.Canceled)
}
