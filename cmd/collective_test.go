package cmd

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"rmasync/internal/collective"
)

func TestParseSelection(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    collective.Selection
		wantErr bool
	}{
		{name: "whole group", value: "INV000001", want: collective.Selection{InvoiceNumber: "INV000001"}},
		{name: "orders", value: "INV000001=1, 2,3", want: collective.Selection{InvoiceNumber: "INV000001", OrderIDs: []int64{1, 2, 3}}},
		{name: "bad order id", value: "INV000001=1,x", wantErr: true},
		{name: "missing number", value: "=1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSelection(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCriteriaFromFlags(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().StringSlice("payment-method", nil, "")
	cmd.Flags().String("from", "", "")
	cmd.Flags().String("to", "", "")
	cmd.Flags().StringSlice("customer", nil, "")
	cmd.Flags().String("title", "", "")
	require.NoError(t, cmd.Flags().Parse([]string{
		"--payment-method", "bacs,cod", "--from", "2024-03-01", "--to", "2024-03-31", "--customer", "C5",
	}))

	c, err := criteriaFromFlags(cmd)
	require.NoError(t, err)
	assert.Equal(t, []string{"bacs", "cod"}, c.PaymentMethods)
	assert.Equal(t, []string{"C5"}, c.Customers)
	require.NotNil(t, c.From)
	require.NotNil(t, c.To)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.Local), *c.From)
	assert.True(t, c.To.After(time.Date(2024, 3, 31, 23, 59, 0, 0, time.Local)))
	assert.True(t, c.To.Before(time.Date(2024, 4, 1, 0, 0, 0, 0, time.Local)))
}

func TestCriteriaFromFlagsRejectsBadDate(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().StringSlice("payment-method", nil, "")
	cmd.Flags().String("from", "", "")
	cmd.Flags().String("to", "", "")
	cmd.Flags().StringSlice("customer", nil, "")
	cmd.Flags().String("title", "", "")
	require.NoError(t, cmd.Flags().Parse([]string{"--from", "01.03.2024"}))

	_, err := criteriaFromFlags(cmd)
	assert.Error(t, err)
}
