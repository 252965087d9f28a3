package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/yummybites/internal/domain"
)

// WSDialer подключается к /ws/order/{id} по WebSocket.
type WSDialer struct {
	// BaseURL — ws:// или wss:// адрес сервера без пути.
	BaseURL string
	Dialer  *websocket.Dialer
	Header  http.Header
}

// Dial открывает канал. Любая сетевая ошибка считается временной.
func (d WSDialer) Dial(ctx context.Context, orderID string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	target := strings.TrimRight(d.BaseURL, "/") + "/ws/order/" + url.PathEscape(orderID)

	conn, resp, err := dialer.DialContext(ctx, target, d.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", domain.ErrTransientNetwork, target, err)
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

// Read пропускает служебные кадры; ping обрабатывается библиотекой.
func (c *wsConn) Read() ([]byte, error) {
	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if mt == websocket.TextMessage || mt == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// HTTPFetcher читает заказ через REST API.
type HTTPFetcher struct {
	// BaseURL — http:// или https:// адрес сервера без пути.
	BaseURL string
	Client  *http.Client
	// Token — необязательный bearer-токен.
	Token string
}

type fetchedItem struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int32   `json:"quantity"`
	Image    string  `json:"image"`
}

type fetchedOrder struct {
	ID              string        `json:"_id"`
	Items           []fetchedItem `json:"items"`
	Total           float64       `json:"total"`
	DeliveryDetails struct {
		Name         string `json:"name"`
		Phone        string `json:"phone"`
		Address      string `json:"address"`
		Instructions string `json:"instructions"`
	} `json:"delivery_details"`
	Status    string    `json:"status"`
	UserEmail string    `json:"user_email"`
	Timestamp time.Time `json:"timestamp"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int64     `json:"version"`
}

// FetchOrder возвращает ErrOrderNotFound на 404 и ErrTransientNetwork на сетевые сбои и 5xx.
func (f HTTPFetcher) FetchOrder(ctx context.Context, orderID string) (domain.Order, error) {
	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	target := strings.TrimRight(f.BaseURL, "/") + "/api/v1/order/" + url.PathEscape(orderID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return domain.Order{}, fmt.Errorf("build request: %w", err)
	}
	if f.Token != "" {
		req.Header.Set("Authorization", "Bearer "+f.Token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return domain.Order{}, fmt.Errorf("%w: fetch order: %v", domain.ErrTransientNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.Order{}, domain.ErrOrderNotFound
	case resp.StatusCode >= http.StatusInternalServerError:
		return domain.Order{}, fmt.Errorf("%w: fetch order: status %d", domain.ErrTransientNetwork, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return domain.Order{}, fmt.Errorf("fetch order: unexpected status %d", resp.StatusCode)
	}

	var body fetchedOrder
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.Order{}, fmt.Errorf("decode order: %w", err)
	}
	return body.toDomain()
}

func (o fetchedOrder) toDomain() (domain.Order, error) {
	status, err := domain.ParseOrderStatus(o.Status)
	if err != nil {
		return domain.Order{}, fmt.Errorf("decode order: %w", err)
	}
	items := make([]domain.OrderItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, domain.OrderItem{
			Name:       it.Name,
			PriceMinor: toMinor(it.Price),
			Quantity:   it.Quantity,
			Image:      it.Image,
		})
	}
	email := o.UserEmail
	if email == "guest" {
		email = ""
	}
	return domain.Order{
		ID:         o.ID,
		Items:      items,
		TotalMinor: toMinor(o.Total),
		Delivery: domain.DeliveryDetails{
			Name:         o.DeliveryDetails.Name,
			Phone:        o.DeliveryDetails.Phone,
			Address:      o.DeliveryDetails.Address,
			Instructions: o.DeliveryDetails.Instructions,
		},
		Status:    status,
		UserEmail: email,
		Version:   o.Version,
		CreatedAt: o.Timestamp,
		UpdatedAt: o.UpdatedAt,
	}, nil
}

func toMinor(rupees float64) int64 {
	return decimal.NewFromFloat(rupees).Shift(2).Round(0).IntPart()
}
