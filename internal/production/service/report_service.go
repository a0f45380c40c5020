package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/report"
	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ObjectStore is the part of *minio.Client used to archive exports.
type ObjectStore interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Export is a generated workbook. Object is empty when no archive copy was stored.
type Export struct {
	Filename string
	Data     []byte
	Object   string
}

type ReportService struct {
	production *ProductionService
	store      ObjectStore
	bucket     string
	logger     *zap.Logger
	now        func() time.Time
}

func NewReportService(production *ProductionService, store ObjectStore, bucket string, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{production: production, store: store, bucket: bucket, logger: logger, now: time.Now}
}

// ExportOrders builds the order workbook. A failed archive upload is logged
// and the workbook is still returned.
func (s *ReportService) ExportOrders(ctx context.Context, status string) (*Export, error) {
	orders, err := s.production.ListOrders(ctx, status)
	if err != nil {
		return nil, err
	}
	now := s.now()
	f, err := report.OrdersWorkbook(orders, now)
	if err != nil {
		return nil, fmt.Errorf("生成导出文件失败: %w", err)
	}
	defer f.Close()
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("生成导出文件失败: %w", err)
	}

	out := &Export{Filename: report.OrdersFilename(now), Data: buf.Bytes()}
	if s.store == nil {
		return out, nil
	}
	object := "exports/" + out.Filename
	_, err = s.store.PutObject(ctx, s.bucket, object, bytes.NewReader(out.Data), int64(len(out.Data)), minio.PutObjectOptions{
		ContentType: XLSXContentType,
	})
	if err != nil {
		s.logger.Warn("Failed to archive order export", zap.String("object", object), zap.Error(err))
		return out, nil
	}
	out.Object = object
	s.logger.Info("Order export archived", zap.String("bucket", s.bucket), zap.String("object", object), zap.Int("orders", len(orders)))
	return out, nil
}
