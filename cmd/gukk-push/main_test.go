package main

import (
	"testing"

	"github.com/raterudder/gukk/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestFind(t *testing.T) {
	accounts := []*types.Account{
		{ID: "10", CompanyID: "1", Number: "100200300"},
		{ID: "20", CompanyID: "1", Number: "100200400"},
	}
	assert.Same(t, accounts[1], findAccount(accounts, "100200400"))
	assert.Same(t, accounts[0], findAccount(accounts, "1_10"))
	assert.Nil(t, findAccount(accounts, "999"))

	meters := []*types.Meter{
		{ID: "555", Title: "ХВС"},
		{ID: "556", Title: "ГВС"},
	}
	assert.Same(t, meters[1], findMeter(meters, "ГВС"))
	assert.Same(t, meters[0], findMeter(meters, "555"))
	assert.Nil(t, findMeter(meters, "Газ"))
}
