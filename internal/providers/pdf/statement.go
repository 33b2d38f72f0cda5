package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	creditdomain "github.com/smallbiznis/gapline/internal/credit/domain"
)

var ErrMissingPeriod = errors.New("statement_missing_period")

type StatementData struct {
	TenantName    string
	BillingPeriod string
	GeneratedAt   string
	Allowance     string
	Used          string
	Remaining     string
	PercentUsed   string

	Breakdown    []StatementLine
	Transactions []StatementTransaction
}

type StatementLine struct {
	Label   string
	Count   int64
	Credits int64
}

type StatementTransaction struct {
	Date    string
	Action  string
	Credits int
	Note    string
}

// StatementFromUsage flattens a usage summary into printable rows.
func StatementFromUsage(tenantName string, usage creditdomain.Usage, generatedAt time.Time) StatementData {
	data := StatementData{
		TenantName:    tenantName,
		BillingPeriod: usage.BillingPeriod,
		GeneratedAt:   generatedAt.UTC().Format("2006-01-02 15:04 MST"),
		Allowance:     creditAmount(usage.TotalAllowance, usage.Unlimited),
		Used:          strconv.Itoa(usage.CreditsUsed),
		Remaining:     creditAmount(usage.CreditsRemaining, usage.Unlimited),
		PercentUsed:   fmt.Sprintf("%d%%", usage.PercentUsed),
	}

	actions := make([]string, 0, len(usage.ActionBreakdown))
	for action := range usage.ActionBreakdown {
		actions = append(actions, string(action))
	}
	sort.Strings(actions)
	for _, action := range actions {
		entry := usage.ActionBreakdown[creditdomain.ActionType(action)]
		data.Breakdown = append(data.Breakdown, StatementLine{
			Label:   entry.Label,
			Count:   entry.Count,
			Credits: entry.CreditsUsed,
		})
	}

	for _, tx := range usage.RecentTransactions {
		label := string(tx.ActionType)
		if cost, ok := creditdomain.LookupAction(label); ok {
			label = cost.Label
		}
		note := ""
		if tx.Description != nil {
			note = *tx.Description
		}
		data.Transactions = append(data.Transactions, StatementTransaction{
			Date:    tx.CreatedAt.UTC().Format("2006-01-02 15:04"),
			Action:  label,
			Credits: tx.CreditsCharged,
			Note:    note,
		})
	}
	return data
}

func creditAmount(v int, unlimited bool) string {
	if unlimited {
		return "Unlimited"
	}
	return strconv.Itoa(v)
}

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

func (p *PDFProvider) GenerateCreditStatement(ctx context.Context, data StatementData) (io.Reader, error) {
	if data.BillingPeriod == "" {
		return nil, ErrMissingPeriod
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, "AI Credit Statement", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)
	m.AddRow(20,
		col.New(6).Add(
			text.New(data.TenantName, props.Text{Style: fontstyle.Bold}),
			text.New("Billing period: "+data.BillingPeriod, props.Text{Top: 5}),
			text.New("Generated: "+data.GeneratedAt, props.Text{Top: 10}),
		),
		col.New(6).Add(
			text.New("Allowance: "+data.Allowance, props.Text{Align: align.Right}),
			text.New("Used: "+data.Used+" ("+data.PercentUsed+")", props.Text{Top: 5, Align: align.Right}),
			text.New("Remaining: "+data.Remaining, props.Text{Top: 10, Align: align.Right}),
		),
	)

	m.AddRow(10,
		text.NewCol(12, "Usage by action", props.Text{Size: 12, Style: fontstyle.Bold, Top: 3}),
	)
	m.AddRow(8,
		text.NewCol(8, "Action", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Count", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Credits", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	if len(data.Breakdown) == 0 {
		m.AddRow(8, text.NewCol(12, "No AI actions this period.", props.Text{Size: 9}))
	}
	for _, line := range data.Breakdown {
		m.AddRow(7,
			text.NewCol(8, line.Label, props.Text{Size: 9}),
			text.NewCol(2, strconv.FormatInt(line.Count, 10), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, strconv.FormatInt(line.Credits, 10), props.Text{Size: 9, Align: align.Right}),
		)
	}

	if len(data.Transactions) > 0 {
		m.AddRow(10,
			text.NewCol(12, "Recent activity", props.Text{Size: 12, Style: fontstyle.Bold, Top: 3}),
		)
		m.AddRow(8,
			text.NewCol(3, "Date", props.Text{Style: fontstyle.Bold, Size: 9}),
			text.NewCol(4, "Action", props.Text{Style: fontstyle.Bold, Size: 9}),
			text.NewCol(3, "Note", props.Text{Style: fontstyle.Bold, Size: 9}),
			text.NewCol(2, "Credits", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		)
		for _, tx := range data.Transactions {
			m.AddRow(7,
				text.NewCol(3, tx.Date, props.Text{Size: 9}),
				text.NewCol(4, tx.Action, props.Text{Size: 9}),
				text.NewCol(3, tx.Note, props.Text{Size: 9}),
				text.NewCol(2, strconv.Itoa(tx.Credits), props.Text{Size: 9, Align: align.Right}),
			)
		}
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(doc.GetBytes()), nil
}
