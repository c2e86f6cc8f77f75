// Package gukk is a client for the GUK Krasnodar resident portal. It logs in
// with a username and password, lists accounts and meters, reads account
// balances and submits meter readings.
package gukk

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/raterudder/gukk/pkg/common"
	"github.com/raterudder/gukk/pkg/log"
	"github.com/raterudder/gukk/pkg/parse"
	"github.com/raterudder/gukk/pkg/types"
)

const (
	// DefaultBaseURL is the portal's address.
	DefaultBaseURL = "https://lk.gukkrasnodar.ru"
	// DefaultTimeout is the total budget for one request.
	DefaultTimeout = 30 * time.Second

	loginPath   = "/api/v1/user/login"
	accountPath = "/api/v1/user/accounts"
	detailPath  = "/api/v1/user/account/info/extend"
	metersPath  = "/api/v1/user/account/meters"
	measurePath = "/api/v1/user/account/meter/measure/set"
)

// Config holds what is needed to construct a Client. Zero values get
// defaults.
type Config struct {
	Username  string
	Password  string
	Timeout   time.Duration
	UserAgent string
	BaseURL   string
}

// Client is a session against the portal. A Client owns its http client,
// cookie jar and bearer token. It is not safe for overlapping calls while
// Login is running: a call racing a login may be sent without a token.
type Client struct {
	client   *http.Client
	baseURL  string
	username string
	password string
	token    string
	closed   atomic.Bool
}

// NewClient returns a client for cfg. No request is made until Login.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Client{
		client:   common.HTTPClient(cfg.Timeout, cfg.UserAgent),
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
	}
}

// Username returns the username the client logs in with.
func (c *Client) Username() string {
	return c.username
}

// BaseURL returns the portal address requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Close releases the client's connections. It is safe to call more than once
// and any request after Close fails.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.client.CloseIdleConnections()
	return nil
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type loginResult struct {
	Token string `json:"token"`
}

// Login obtains a new bearer token. The previous token is dropped first so a
// failed login leaves the client unauthenticated, except when ctx is done
// before the portal answered: then the previous token is kept.
func (c *Client) Login(ctx context.Context) error {
	prev := c.token
	c.token = ""

	var res loginResult
	err := c.post(ctx, loginPath, "/login", loginRequest{
		Login:    c.username,
		Password: c.password,
	}, &res)
	if err != nil {
		if ctx.Err() != nil && !IsClientError(err) {
			c.token = prev
			return err
		}
		if kindOf(err) == ErrResponse {
			log.Ctx(ctx).ErrorContext(ctx, "portal login failed", log.Username(c.username), slog.Any("error", err))
			return newError(ErrLoginError, 0, err)
		}
		return err
	}
	if res.Token == "" {
		log.Ctx(ctx).ErrorContext(ctx, "portal login returned no token", log.Username(c.username))
		return &Error{Kind: ErrLoginError, Message: "no token in response"}
	}

	c.token = res.Token
	log.Ctx(ctx).DebugContext(ctx, "portal login success", log.Username(c.username))
	return nil
}

// LoggedIn reports whether the client holds a token.
func (c *Client) LoggedIn() bool {
	return c.token != ""
}

type accountsResult struct {
	Accounts []struct {
		ID        portalText `json:"id_account"`
		CompanyID portalText `json:"id_company"`
		Number    portalText `json:"account"`
		Address   portalText `json:"address"`
	} `json:"accounts"`
}

// Accounts lists the accounts of the logged in user. Each call returns new
// Account values.
func (c *Client) Accounts(ctx context.Context) ([]*types.Account, error) {
	var res accountsResult
	if err := c.get(ctx, accountPath, "/cabinet/accounts", &res); err != nil {
		return nil, err
	}

	accounts := make([]*types.Account, 0, len(res.Accounts))
	for _, a := range res.Accounts {
		accounts = append(accounts, &types.Account{
			ID:        string(a.ID),
			CompanyID: string(a.CompanyID),
			Number:    string(a.Number),
			Address:   string(a.Address),
		})
	}
	log.Ctx(ctx).DebugContext(ctx, "got portal accounts", slog.Int("count", len(accounts)))
	return accounts, nil
}

type accountRequest struct {
	CompanyID string `json:"id_company"`
	AccountID string `json:"id_account"`
}

type detailResult struct {
	Info []struct {
		Name  portalText `json:"name"`
		Value portalText `json:"value"`
	} `json:"info"`
}

// AccountDetail fetches an account's detail rows and returns the values
// parsed from them without touching account.
func (c *Client) AccountDetail(ctx context.Context, account *types.Account) (types.AccountDetail, error) {
	var res detailResult
	err := c.post(ctx, detailPath, "/cabinet/accounts", accountRequest{
		CompanyID: account.CompanyID,
		AccountID: account.ID,
	}, &res)
	if err != nil {
		return types.AccountDetail{}, err
	}

	rows := make([]parse.DetailRow, 0, len(res.Info))
	for _, r := range res.Info {
		rows = append(rows, parse.DetailRow{Name: string(r.Name), Value: string(r.Value)})
	}
	log.Ctx(ctx).DebugContext(
		ctx,
		"got portal account detail",
		slog.String("account", account.Code()),
		slog.Int("rows", len(rows)),
	)
	return parse.Detail(rows), nil
}

// UpdateAccountDetail fetches an account's details and sets its balance,
// charge and area in place. The same account is returned.
func (c *Client) UpdateAccountDetail(ctx context.Context, account *types.Account) (*types.Account, error) {
	d, err := c.AccountDetail(ctx, account)
	if err != nil {
		return nil, err
	}
	account.ApplyDetail(d)
	return account, nil
}

type metersResult struct {
	VolumeAllow bool `json:"volume_allow"`
	Meters      []struct {
		ID          portalText      `json:"id_meter"`
		Title       portalText      `json:"title"`
		Detail      portalText      `json:"detail"`
		Info        types.MeterInfo `json:"info"`
		CurrMeasure portalText      `json:"curr_measure"`
	} `json:"meter"`
}

func metersReferer(account *types.Account) string {
	return fmt.Sprintf("/cabinet/accounts/%s/%s/meters", account.CompanyID, account.ID)
}

// Meters lists the meters of an account. Each call returns new Meter values
// referencing account.
func (c *Client) Meters(ctx context.Context, account *types.Account) ([]*types.Meter, error) {
	var res metersResult
	err := c.post(ctx, metersPath, metersReferer(account), accountRequest{
		CompanyID: account.CompanyID,
		AccountID: account.ID,
	}, &res)
	if err != nil {
		return nil, err
	}

	meters := make([]*types.Meter, 0, len(res.Meters))
	for _, m := range res.Meters {
		detail := string(m.Detail)
		value, date := parse.LastIndication(append([]string{detail}, m.Info.Lines()...)...)
		if value == nil {
			value = parse.Int(string(m.CurrMeasure))
		}
		meters = append(meters, &types.Meter{
			ID:                 string(m.ID),
			Title:              string(m.Title),
			Detail:             detail,
			Info:               m.Info,
			LastIndication:     value,
			LastIndicationDate: date,
			PushAllowed:        res.VolumeAllow,
			Account:            account,
		})
	}
	log.Ctx(ctx).DebugContext(
		ctx,
		"got portal meters",
		slog.String("account", account.Code()),
		slog.Int("count", len(meters)),
	)
	return meters, nil
}

type measureRequest struct {
	CompanyID string `json:"id_company"`
	AccountID string `json:"id_account"`
	MeterID   string `json:"id_meter"`
	Value     int64  `json:"value"`
	Volume    *int64 `json:"volume"`
}

// ParseMeasure converts a reading entered as text into a value for
// SendMeasure. Fractions are rounded to the nearest integer.
func ParseMeasure(s string) (int64, error) {
	if i := parse.Int(s); i != nil {
		if *i <= 0 {
			return 0, invalidValue("reading must be positive: %s", s)
		}
		return *i, nil
	}
	f := parse.Float(s)
	if f == nil || math.IsNaN(*f) || math.IsInf(*f, 0) {
		return 0, invalidValue("reading is not a number: %q", s)
	}
	v := math.Round(*f)
	if v <= 0 || v >= math.MaxInt64 {
		return 0, invalidValue("reading must be positive: %s", s)
	}
	return int64(v), nil
}

// SendMeasure submits a reading for a meter. The value must be positive and
// the meter must reference its account; both are checked before any request.
func (c *Client) SendMeasure(ctx context.Context, meter *types.Meter, value int64) error {
	if value <= 0 {
		return invalidValue("reading must be positive: %d", value)
	}
	if meter == nil || meter.Account == nil {
		return invalidValue("meter has no account")
	}

	err := c.post(ctx, measurePath, metersReferer(meter.Account), measureRequest{
		CompanyID: meter.Account.CompanyID,
		AccountID: meter.Account.ID,
		MeterID:   meter.ID,
		Value:     value,
	}, nil)
	if err != nil {
		if IsClientError(err) {
			return &Error{Kind: ErrResponse, Message: "failed to send reading", Err: err}
		}
		return err
	}

	log.Ctx(ctx).InfoContext(
		ctx,
		"sent meter reading",
		slog.String("account", meter.Account.Code()),
		slog.String("meter", meter.Code()),
		slog.Int64("value", value),
	)
	return nil
}
