package port

import (
	"context"
	"io"

	"github.com/garyjia/ohsms/internal/domain/entity"
)

// ReportExporter renders a report register into a downloadable document
type ReportExporter interface {
	ContentType() string
	FileExtension() string
	Export(ctx context.Context, reports []*entity.Report, w io.Writer) error
}
