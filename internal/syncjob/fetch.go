package syncjob

import (
	"context"
	"fmt"

	"github.com/nerrad567/iot-portal/internal/twin"
)

// FetchAll reads every twin matching filter, following continuation tokens
// until the accumulated count reaches the total reported by the registry.
// The first page is always requested.
//
// A registry that stops handing out continuation tokens, or returns an empty
// page, before the total is reached ends the loop with what was collected.
func FetchAll(ctx context.Context, registry twin.Registry, filter string, pageSize int, logger Logger) ([]twin.Twin, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	var (
		items []twin.Twin
		token string
		pages int
	)
	for {
		page, err := registry.GetAllDevices(ctx, token, filter, pageSize)
		if err != nil {
			return nil, fmt.Errorf("fetching page %d: %w", pages+1, err)
		}
		pages++
		items = append(items, page.Items...)

		logger.Debug("fetched registry page",
			"page", pages,
			"items", len(page.Items),
			"fetched", len(items),
			"total", page.TotalItems,
		)

		if len(items) >= page.TotalItems {
			return items, nil
		}
		if page.NextPage == "" || len(page.Items) == 0 {
			logger.Warn("registry paging ended before reported total",
				"fetched", len(items),
				"total", page.TotalItems,
				"pages", pages,
			)
			return items, nil
		}
		token = page.NextPage
	}
}
