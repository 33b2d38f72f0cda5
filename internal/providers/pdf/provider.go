package pdf

import (
	"context"
	"io"

	"go.uber.org/fx"
)

var Module = fx.Module("pdf.provider",
	fx.Provide(New),
)

type Provider interface {
	GenerateCreditStatement(ctx context.Context, data StatementData) (io.Reader, error)
}
