package extract

import (
	"context"
	"fmt"

	"archivist/internal/catalog"
	"archivist/internal/pipeline"
	"archivist/internal/services"
)

type forcedOCRKey struct{}

// WithForcedOCR makes extraction skip the native text layer and OCR every
// page.
func WithForcedOCR(ctx context.Context) context.Context {
	return context.WithValue(ctx, forcedOCRKey{}, true)
}

func forcedOCR(ctx context.Context) bool {
	v, _ := ctx.Value(forcedOCRKey{}).(bool)
	return v
}

// Runner is the executor surface Reocr drives.
type Runner interface {
	Run(ctx context.Context, s catalog.Stage, opts pipeline.RunOptions) (pipeline.BatchReport, error)
}

// Items reads catalog items.
type Items interface {
	Get(ctx context.Context, nodeID int64) (*catalog.Item, error)
}

// Reocr re-extracts one downloaded item with OCR forced. The forced claim
// reopens the item's analysis, so the next analyze run describes the new
// text. The item is returned as stored afterwards.
func Reocr(ctx context.Context, runner Runner, items Items, nodeID int64) (*catalog.Item, error) {
	item, err := items.Get(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if item.DownloadStatus != catalog.StatusDone || item.LocalPDFPath == "" {
		return item, services.Wrap(services.ErrValidation, "extract", "reocr",
			fmt.Sprintf("node %d has no local pdf; run download first", nodeID), nil)
	}

	report, err := runner.Run(WithForcedOCR(ctx), catalog.StageExtract, pipeline.RunOptions{
		Force:   true,
		NodeIDs: []int64{nodeID},
	})
	if err != nil {
		return item, err
	}
	if report.Attempted == 0 {
		return item, services.Wrap(services.ErrValidation, "extract", "reocr",
			fmt.Sprintf("node %d is busy in another stage; retry later", nodeID), nil)
	}
	item, err = items.Get(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if report.Failed > 0 {
		return item, services.Wrap(services.ErrExternalTool, "extract", "reocr",
			fmt.Sprintf("ocr of node %d failed; see the log for details", nodeID), nil)
	}
	return item, nil
}
