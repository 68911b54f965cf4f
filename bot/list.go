package bot

import (
	"context"
	"fmt"
	"strings"

	"animedrive/bot/catalog"
)

const listPageSize = 10

// ListPage is one page of the catalog browse view.
type ListPage struct {
	Text    string
	Page    int
	Pages   int
	HasPrev bool
	HasNext bool
}

// ListFlow renders the paginated catalog listing.
type ListFlow struct {
	store SeriesStore
}

func NewListFlow(store SeriesStore) *ListFlow {
	return &ListFlow{store: store}
}

// Page builds the requested page, clamping out-of-range page numbers.
func (f *ListFlow) Page(ctx context.Context, page int) (ListPage, error) {
	total, err := f.store.Count(ctx)
	if err != nil {
		return ListPage{}, fmt.Errorf("count series: %w", err)
	}
	if total == 0 {
		return ListPage{Text: "📭 The library is empty for now."}, nil
	}

	pages := (total + listPageSize - 1) / listPageSize
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}

	series, err := f.store.List(ctx, (page-1)*listPageSize, listPageSize)
	if err != nil {
		return ListPage{}, fmt.Errorf("list series: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📚 *Library* (page %d of %d)\n\n", page, pages)
	for i, s := range series {
		label := fmt.Sprintf("%d episode(s)", len(s.Episodes))
		if s.IsMovie {
			label = "movie"
		}
		fmt.Fprintf(&b, "%d. %s · %s\n", (page-1)*listPageSize+i+1, catalog.DisplayName(s.Slug), label)
	}

	return ListPage{
		Text:    b.String(),
		Page:    page,
		Pages:   pages,
		HasPrev: page > 1,
		HasNext: page < pages,
	}, nil
}
