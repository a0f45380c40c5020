// Package client talks to the production and inventory REST API.
package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bitfantasy/nimo-mes/internal/config"
	"github.com/bitfantasy/nimo-mes/internal/production/model"
	resty "github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

type Client struct {
	http *resty.Client
}

func New(cfg config.ClientConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Accept", "application/json").
		SetLogger(logger.Sugar())
	if cfg.Token != "" {
		rc.SetAuthToken(cfg.Token)
	}
	if cfg.Timeout > 0 {
		rc.SetTimeout(cfg.Timeout)
	}
	return &Client{http: rc}
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.http.R().SetContext(ctx).SetError(&model.ErrorResponse{})
}

// decodeError rebuilds the typed error from a non-2xx response. Bodies that
// are not in the coded format keep the HTTP status as their code.
func decodeError(resp *resty.Response) error {
	body, _ := resp.Error().(*model.ErrorResponse)
	if body == nil || (body.Code == 0 && body.Message == "") {
		body = &model.ErrorResponse{
			Code:    resp.StatusCode() * 100,
			Message: strings.TrimSpace(resp.String()),
		}
	}
	if body.Message == "" {
		body.Message = http.StatusText(resp.StatusCode())
	}
	return model.ErrorFromResponse(resp.StatusCode(), *body)
}

func (c *Client) ListMaterials(ctx context.Context) ([]model.Material, error) {
	var out []model.Material
	resp, err := c.request(ctx).SetResult(&out).Get("/inventory/materials")
	if err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}
	if resp.IsError() {
		return nil, decodeError(resp)
	}
	return out, nil
}

func (c *Client) GetMaterial(ctx context.Context, id int64) (*model.Material, error) {
	var out model.Material
	resp, err := c.request(ctx).SetResult(&out).Get(fmt.Sprintf("/inventory/materials/%d", id))
	if err != nil {
		return nil, fmt.Errorf("get material %d: %w", id, err)
	}
	if resp.IsError() {
		return nil, decodeError(resp)
	}
	return &out, nil
}

// CreateBOM stores a reusable recipe through the legacy endpoint and returns
// the number of components accepted.
func (c *Client) CreateBOM(ctx context.Context, cmd model.CreateBOMCommand) (int, error) {
	var n int
	resp, err := c.request(ctx).SetBody(cmd).SetResult(&n).Post("/production/bom")
	if err != nil {
		return 0, fmt.Errorf("create bom: %w", err)
	}
	if resp.IsError() {
		return 0, decodeError(resp)
	}
	return n, nil
}

func (c *Client) CreateOrder(ctx context.Context, cmd model.CreateOrderCommand) (int64, error) {
	var id int64
	resp, err := c.request(ctx).SetBody(cmd).SetResult(&id).Post("/production/orders")
	if err != nil {
		return 0, fmt.Errorf("create production order: %w", err)
	}
	if resp.IsError() {
		return 0, decodeError(resp)
	}
	return id, nil
}

func (c *Client) ListOrders(ctx context.Context) ([]model.ProductionOrder, error) {
	var out []model.ProductionOrder
	resp, err := c.request(ctx).SetResult(&out).Get("/production/orders")
	if err != nil {
		return nil, fmt.Errorf("list production orders: %w", err)
	}
	if resp.IsError() {
		return nil, decodeError(resp)
	}
	return out, nil
}

func (c *Client) GetOrder(ctx context.Context, id int64) (*model.ProductionOrder, error) {
	var out model.ProductionOrder
	resp, err := c.request(ctx).SetResult(&out).Get(fmt.Sprintf("/production/orders/%d", id))
	if err != nil {
		return nil, fmt.Errorf("get production order %d: %w", id, err)
	}
	if resp.IsError() {
		return nil, decodeError(resp)
	}
	return &out, nil
}

func (c *Client) UpdateOrderItems(ctx context.Context, id int64, updates []model.OrderItemUpdate) error {
	resp, err := c.request(ctx).SetBody(updates).Put(fmt.Sprintf("/production/orders/%d/items", id))
	if err != nil {
		return fmt.Errorf("update items of order %d: %w", id, err)
	}
	if resp.IsError() {
		return decodeError(resp)
	}
	return nil
}

// StartOrder asks the backend to deduct raw materials and mark the order Started.
func (c *Client) StartOrder(ctx context.Context, id int64) error {
	return c.transition(ctx, id, model.ActionStart)
}

// CompleteOrder asks the backend to add finished goods and mark the order Completed.
func (c *Client) CompleteOrder(ctx context.Context, id int64) error {
	return c.transition(ctx, id, model.ActionComplete)
}

func (c *Client) transition(ctx context.Context, id int64, a model.Action) error {
	resp, err := c.request(ctx).
		SetBody(map[string]interface{}{}).
		Post(fmt.Sprintf("/production/orders/%d/%s", id, a))
	if err != nil {
		return fmt.Errorf("%s order %d: %w", a, id, err)
	}
	if resp.IsError() {
		return decodeError(resp)
	}
	return nil
}

// Event is one server-sent event from the production stream.
type Event struct {
	Type string
	Data string
}

// Watch follows /production/events and calls fn for each event until the
// stream ends, ctx is cancelled, or fn returns an error.
func (c *Client) Watch(ctx context.Context, fn func(Event) error) error {
	resp, err := c.request(ctx).
		SetHeader("Accept", "text/event-stream").
		SetDoNotParseResponse(true).
		Get("/production/events")
	if err != nil {
		return err
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(body)
		var e model.ErrorResponse
		if json.Unmarshal(raw, &e) != nil || (e.Code == 0 && e.Message == "") {
			e = model.ErrorResponse{Code: resp.StatusCode() * 100, Message: strings.TrimSpace(string(raw))}
		}
		if e.Message == "" {
			e.Message = http.StatusText(resp.StatusCode())
		}
		return model.ErrorFromResponse(resp.StatusCode(), e)
	}

	var ev Event
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if ev.Type != "" {
				if err := fn(ev); err != nil {
					return err
				}
			}
			ev = Event{}
		case strings.HasPrefix(line, ":"):
			// keepalive
		case strings.HasPrefix(line, "event:"):
			ev.Type = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			ev.Data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	return scanner.Err()
}
