package pdf

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	creditdomain "github.com/smallbiznis/gapline/internal/credit/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleUsage() creditdomain.Usage {
	note := "renewal push"
	return creditdomain.Usage{
		BillingPeriod:    "2025-03",
		TotalAllowance:   500,
		CreditsUsed:      9,
		CreditsRemaining: 491,
		PercentUsed:      2,
		ActionBreakdown: map[creditdomain.ActionType]creditdomain.ActionUsage{
			creditdomain.ActionGeneratePlaybook: {Label: "Playbook Generation", Count: 1, CreditsUsed: 5},
			creditdomain.ActionAnalyzeAccount:   {Label: "Account Gap Analysis", Count: 2, CreditsUsed: 4},
		},
		RecentTransactions: []creditdomain.CreditTransaction{
			{ActionType: creditdomain.ActionAnalyzeAccount, CreditsCharged: 2, Description: &note, CreatedAt: time.Date(2025, 3, 12, 8, 0, 0, 0, time.UTC)},
		},
	}
}

func TestStatementFromUsage(t *testing.T) {
	data := StatementFromUsage("Acme", sampleUsage(), time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC))

	assert.Equal(t, "500", data.Allowance)
	assert.Equal(t, "491", data.Remaining)
	assert.Equal(t, "2%", data.PercentUsed)
	require.Len(t, data.Breakdown, 2)
	assert.Equal(t, "Account Gap Analysis", data.Breakdown[0].Label)
	require.Len(t, data.Transactions, 1)
	assert.Equal(t, "renewal push", data.Transactions[0].Note)
	assert.Equal(t, "2025-03-12 08:00", data.Transactions[0].Date)
}

func TestStatementFromUnlimitedUsage(t *testing.T) {
	usage := creditdomain.Usage{BillingPeriod: "2025-03", TotalAllowance: -1, CreditsRemaining: -1, Unlimited: true}
	data := StatementFromUsage("Acme", usage, time.Now())
	assert.Equal(t, "Unlimited", data.Allowance)
	assert.Equal(t, "Unlimited", data.Remaining)
	assert.Empty(t, data.Breakdown)
}

func TestGenerateCreditStatement(t *testing.T) {
	data := StatementFromUsage("Acme", sampleUsage(), time.Now())

	reader, err := New().GenerateCreditStatement(context.Background(), data)
	require.NoError(t, err)
	body, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))
}

func TestGenerateCreditStatementRequiresPeriod(t *testing.T) {
	_, err := New().GenerateCreditStatement(context.Background(), StatementData{})
	assert.ErrorIs(t, err, ErrMissingPeriod)
}
