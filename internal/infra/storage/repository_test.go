package storage

import "testing"

func TestListQuery_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   ListQuery
		want ListQuery
	}{
		{
			name: "defaults",
			in:   ListQuery{},
			want: ListQuery{PageSize: DefaultPageSize, Direction: SortDesc, OrderBy: OrderByBalance},
		},
		{
			name: "page size capped",
			in:   ListQuery{PageSize: 5000, PageNumber: 2, Direction: SortAsc, OrderBy: OrderByLastBlock},
			want: ListQuery{PageSize: MaxPageSize, PageNumber: 2, Direction: SortAsc, OrderBy: OrderByLastBlock},
		},
		{
			name: "invalid values",
			in:   ListQuery{PageSize: -1, PageNumber: -3, Direction: "sideways", OrderBy: "address"},
			want: ListQuery{PageSize: DefaultPageSize, Direction: SortDesc, OrderBy: OrderByBalance},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Normalize(); got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestParseSort(t *testing.T) {
	if ParseSortDirection("asc") != SortAsc {
		t.Error("asc should parse case-insensitively")
	}
	if ParseSortDirection("") != SortDesc {
		t.Error("empty direction should default to DESC")
	}
	if ParseSortColumn("blockNumber") != OrderByLastBlock {
		t.Error("blockNumber should alias lastBlock")
	}
	if ParseSortColumn("balance; DROP TABLE addresses") != OrderByBalance {
		t.Error("unknown column should fall back to balance")
	}
}

func TestListQuery_Offset(t *testing.T) {
	q := ListQuery{PageNumber: 3, PageSize: 50}
	if q.Offset() != 150 {
		t.Errorf("expected offset 150, got %d", q.Offset())
	}
}
