package inventory

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/kartta/types"
)

func TestParsePage(t *testing.T) {
	tests := []struct {
		name     string
		page     string
		size     string
		wantPage int
		wantSize int
		wantErr  bool
	}{
		{name: "defaults", page: "", size: "", wantPage: 1, wantSize: 50},
		{name: "explicit", page: "3", size: "10", wantPage: 3, wantSize: 10},
		{name: "size clamped high", page: "1", size: "500", wantPage: 1, wantSize: 100},
		{name: "size clamped low", page: "1", size: "0", wantPage: 1, wantSize: 1},
		{name: "page zero", page: "0", size: "10", wantErr: true},
		{name: "page negative", page: "-1", size: "10", wantErr: true},
		{name: "page non-numeric", page: "abc", size: "10", wantErr: true},
		{name: "size non-numeric", page: "1", size: "lots", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, size, err := ParsePage(tt.page, tt.size)
			if tt.wantErr {
				var verr *ValidationError
				require.ErrorAs(t, err, &verr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantSize, size)
		})
	}
}

func TestPaginate(t *testing.T) {
	records := make([]types.Record, 25)
	for i := range records {
		records[i] = types.Record{"id": fmt.Sprintf("r-%d", i)}
	}

	page := Paginate(records, 3, 10)
	require.Len(t, page, 5, "page 3 of size 10 over 25 items holds the last 5")
	assert.Equal(t, "r-20", page[0].ID())
	assert.Equal(t, "r-24", page[4].ID())

	assert.Empty(t, Paginate(records, 4, 10), "pages past the end are empty")
	assert.Len(t, Paginate(records, 1, 100), 25)
}

func TestSummarizeStates(t *testing.T) {
	records := []types.Record{
		{"id": "a", "state": "running", "region": "us-east-1", "accountId": "1"},
		{"id": "b", "state": "available", "region": "us-east-1", "accountId": "1"},
		{"id": "c", "status": "ACTIVE", "region": "eu-west-1", "accountId": "2"},
		{"id": "d", "state": "stopped", "region": "us-east-1", "accountId": "1"},
		{"id": "e", "state": "stopping", "region": "us-east-1", "accountId": "1"},
		{"id": "f", "status": "failed", "region": "us-east-1", "accountId": "1"},
		{"id": "g", "state": "error", "region": "us-east-1", "accountId": "1"},
	}

	s := Summarize("ec2", records)
	assert.Equal(t, 7, s.Total)
	assert.Equal(t, 2, s.Running, "running reads state only, a status of ACTIVE does not count")
	assert.Equal(t, 2, s.Stopped)
	assert.Equal(t, 1, s.Errors, "errors read status only, a state of error does not count")
	assert.Equal(t, 0, s.SecurityIssues)
	assert.Equal(t, map[string]int{"us-east-1": 6, "eu-west-1": 1}, s.ByRegion)
	assert.Equal(t, map[string]int{"1": 6, "2": 1}, s.ByAccount)
}

func TestSummarizeSecurityIssues(t *testing.T) {
	s3Records := []types.Record{
		{"id": "open", "public": true, "encryption": "AES256"},
		{"id": "plain", "public": false, "encryption": "None"},
		{"id": "fine", "public": false, "encryption": "aws:kms"},
	}
	assert.Equal(t, 2, Summarize("s3", s3Records).SecurityIssues)

	rdsRecords := []types.Record{
		{"id": "db-1", "encrypted": false},
		{"id": "db-2", "encrypted": true},
	}
	assert.Equal(t, 1, Summarize("rds", rdsRecords).SecurityIssues)

	// Security posture rules only apply to their own service.
	assert.Equal(t, 0, Summarize("ec2", s3Records).SecurityIssues)
}
