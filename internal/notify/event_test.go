package notify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/yummybites/internal/domain"
)

func TestEventEncodeWireFormat(t *testing.T) {
	data, err := StatusChanged("abc123", domain.OrderStatusOutForDelivery).Encode()
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"status_changed","order_id":"abc123","status":"Out for Delivery"}`, string(data))
}

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Event
		wantErr error
	}{
		{
			name:    "status changed",
			payload: `{"type":"status_changed","order_id":"abc123","status":"Confirmed"}`,
			want:    StatusChanged("abc123", domain.OrderStatusConfirmed),
		},
		{
			name:    "legacy payload without type",
			payload: `{"order_id":"abc123","status":"Delivered"}`,
			want:    StatusChanged("abc123", domain.OrderStatusDelivered),
		},
		{
			name:    "unknown type",
			payload: `{"type":"eta_updated","order_id":"abc123","status":"Confirmed"}`,
			wantErr: ErrUnknownEventType,
		},
		{
			name:    "invalid status",
			payload: `{"type":"status_changed","order_id":"abc123","status":"shipped"}`,
			wantErr: ErrMalformedEvent,
		},
		{
			name:    "bare status",
			payload: `{"status":"Confirmed"}`,
			want:    Event{Type: EventStatusChanged, Status: domain.OrderStatusConfirmed},
		},
		{
			name:    "missing status",
			payload: `{"type":"status_changed","order_id":"abc123"}`,
			wantErr: ErrMalformedEvent,
		},
		{
			name:    "not json",
			payload: `ping`,
			wantErr: ErrMalformedEvent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeEvent([]byte(tt.payload))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
