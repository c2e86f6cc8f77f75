package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"

	"github.com/raterudder/gukk/pkg/gukk"
	"github.com/raterudder/gukk/pkg/log"
	"github.com/raterudder/gukk/pkg/types"
)

func main() {
	cfg := gukk.Configured()
	accountNumber := lflag.RequiredString("account", "Account number as shown in the portal")
	meterName := lflag.RequiredString("meter", "Meter title or id")
	reading := lflag.RequiredString("value", "Reading to send, fractions are rounded")
	lflag.Configure()

	level, err := log.LevelFromLLog(llog.GetLevel())
	if err != nil {
		panic(err)
	}
	log.SetDefaultLogLevel(level)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	value, err := gukk.ParseMeasure(*reading)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "invalid reading", slog.Any("error", err))
		os.Exit(2)
	}

	client := gukk.NewClient(*cfg)
	defer client.Close()

	if err := push(ctx, client, *accountNumber, *meterName, value); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to push reading", log.Username(cfg.Username), slog.Any("error", err))
		client.Close()
		os.Exit(1)
	}
}

func push(ctx context.Context, client *gukk.Client, accountNumber, meterName string, value int64) error {
	if err := client.Login(ctx); err != nil {
		return fmt.Errorf("failed to login: %w", err)
	}

	accounts, err := gukk.WithAutoAuth(ctx, client, client.Accounts)
	if err != nil {
		return fmt.Errorf("failed to get accounts: %w", err)
	}
	account := findAccount(accounts, accountNumber)
	if account == nil {
		return fmt.Errorf("account %s not found among %d accounts", accountNumber, len(accounts))
	}

	meters, err := gukk.WithAutoAuth(ctx, client, func(ctx context.Context) ([]*types.Meter, error) {
		return client.Meters(ctx, account)
	})
	if err != nil {
		return fmt.Errorf("failed to get meters: %w", err)
	}
	meter := findMeter(meters, meterName)
	if meter == nil {
		return fmt.Errorf("meter %s not found on account %s", meterName, account.Code())
	}
	if !meter.PushAllowed {
		return fmt.Errorf("portal isn't accepting readings for meter %s", meter.Title)
	}

	err = gukk.DoWithAutoAuth(ctx, client, func(ctx context.Context) error {
		return client.SendMeasure(ctx, meter, value)
	})
	if err != nil {
		return err
	}

	return json.NewEncoder(os.Stdout).Encode(struct {
		Account    string `json:"account"`
		Meter      string `json:"meter"`
		Indication int64  `json:"indication"`
		Previous   *int64 `json:"previous"`
	}{
		Account:    account.Code(),
		Meter:      meter.Code(),
		Indication: value,
		Previous:   meter.LastIndication,
	})
}

func findAccount(accounts []*types.Account, number string) *types.Account {
	for _, a := range accounts {
		if a.Number == number || a.Code() == number {
			return a
		}
	}
	return nil
}

func findMeter(meters []*types.Meter, name string) *types.Meter {
	for _, m := range meters {
		if m.Title == name || m.ID == name {
			return m
		}
	}
	return nil
}
