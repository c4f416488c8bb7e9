package account

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"example.com/card-settlement/pkg/circuitbreaker"
	"example.com/card-settlement/pkg/logger"
)

// placeHoldRequest: тело POST /holds.
type placeHoldRequest struct {
	AccountNumber string `json:"account_number"`
	Amount        int64  `json:"amount"`
}

// placeHoldResponse: ответ POST /holds.
type placeHoldResponse struct {
	HoldID string `json:"hold_id"`
}

// errorResponse: тело ответа с отказом.
type errorResponse struct {
	Error string `json:"error"`
}

// HTTPClient: клиент удалённого сервиса счетов.
// Вызовы идут через circuit breaker: при серии отказов транспорта
// запросы отклоняются сразу с кодом service_unavailable.
type HTTPClient struct {
	baseURL *url.URL
	http    *http.Client
	breaker *circuitbreaker.Breaker
}

// NewHTTPClient создаёт клиент сервиса счетов.
func NewHTTPClient(baseURL string, timeout time.Duration) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("некорректный адрес сервиса счетов %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("некорректный адрес сервиса счетов %q", baseURL)
	}

	settings := circuitbreaker.DefaultSettings()
	// Бизнес-отказы (нет денег, неверный счёт) не означают недоступность сервиса
	settings.IsFailure = func(err error) bool {
		return CodeOf(err) == CodeServiceUnavailable
	}

	return &HTTPClient{
		baseURL: u,
		http:    &http.Client{Timeout: timeout},
		breaker: circuitbreaker.New("account-service", settings),
	}, nil
}

// PlaceHold резервирует сумму на счёте.
func (c *HTTPClient) PlaceHold(ctx context.Context, accountNumber string, amount int64) (Hold, error) {
	var resp placeHoldResponse
	err := c.call(ctx, OpPlaceHold, "/holds", placeHoldRequest{
		AccountNumber: accountNumber,
		Amount:        amount,
	}, &resp)
	if err != nil {
		return Hold{}, err
	}

	if resp.HoldID == "" {
		return Hold{}, &Error{Code: CodeUnknown, Op: OpPlaceHold, Err: errors.New("пустой hold_id в ответе")}
	}
	return Hold{id: resp.HoldID}, nil
}

// ReleaseHold снимает резерв.
// Идёт мимо breaker: компенсация нужна именно когда breaker открыт после
// сбоев withdraw, и хотя бы одна попытка снять резерв должна уйти в сеть.
func (c *HTTPClient) ReleaseHold(ctx context.Context, hold Hold) error {
	return c.do(ctx, OpReleaseHold, "/holds/"+url.PathEscape(hold.id)+"/release", nil, nil)
}

// WithdrawFunds списывает зарезервированную сумму.
func (c *HTTPClient) WithdrawFunds(ctx context.Context, hold Hold) error {
	return c.call(ctx, OpWithdrawFunds, "/holds/"+url.PathEscape(hold.id)+"/withdraw", nil, nil)
}

// call выполняет POST запрос через circuit breaker.
func (c *HTTPClient) call(ctx context.Context, op, path string, body, out any) error {
	err := c.breaker.Execute(func() error {
		return c.do(ctx, op, path, body, out)
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return &Error{Code: CodeServiceUnavailable, Op: op, Err: err}
	}
	return err
}

func (c *HTTPClient) do(ctx context.Context, op, path string, body, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &Error{Code: CodeUnknown, Op: op, Err: err}
		}
		reader = bytes.NewReader(data)
	}

	endpoint := c.baseURL.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), reader)
	if err != nil {
		return &Error{Code: CodeUnknown, Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if traceID := logger.TraceIDFromContext(ctx); traceID != "" {
		req.Header.Set("X-Trace-ID", traceID)
	}
	if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
		req.Header.Set("X-Correlation-ID", correlationID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Ответ не получен: результат операции на стороне банка неизвестен
		return &Error{Code: CodeServiceUnavailable, Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &Error{Code: CodeUnknown, Op: op, Err: fmt.Errorf("ошибка разбора ответа: %w", err)}
		}
		return nil
	}

	var errResp errorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&errResp)

	code := ParseCode(errResp.Error)
	if errResp.Error == "" && resp.StatusCode >= 500 {
		code = CodeServiceUnavailable
	}

	return &Error{Code: code, Op: op, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
}
