package places

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/lead-collector/internal/logger"
	"github.com/jonathan/lead-collector/internal/types"
)

// completeDetails fills a missing phone or website from the place details
// endpoint. Records are updated in place; failures leave a record unchanged.
func (l *Lookup) completeDetails(ctx context.Context, records []types.BusinessRecord) {
	g := new(errgroup.Group)
	g.SetLimit(l.opts.DetailsConcurrency)

	for i := range records {
		record := records[i]
		if record.PlaceID == "" || (record.Phone != "" && record.Website != "") {
			continue
		}

		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			detail, err := l.details(ctx, record.PlaceID)
			if err != nil {
				l.log.Debugw("place details failed", logger.FieldBusiness, record.Name, logger.FieldError, err)
				return nil
			}
			if record.Phone == "" {
				record.Phone = detail.Phone
			}
			if record.Website == "" {
				record.Website = detail.Website
			}
			if record.Address == "" {
				record.Address = detail.Address
			}
			records[i] = record
			return nil
		})
	}

	_ = g.Wait()
}
