package salesforce

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindLeadsByEmail(t *testing.T) {
	t.Run("returns leads", func(t *testing.T) {
		mock := &mockClient{
			queryFn: func(_ context.Context, soql string, out any) error {
				assert.Contains(t, soql, "FROM Lead WHERE Email = 'max@example.com'")
				assert.Contains(t, soql, "LIMIT 5")
				for _, field := range leadFields {
					assert.Contains(t, soql, field)
				}
				leads := out.(*[]Lead)
				*leads = []Lead{{ID: "00Qxx", Email: "max@example.com"}}
				return nil
			},
		}

		leads, err := FindLeadsByEmail(context.Background(), mock, "max@example.com", 5)
		require.NoError(t, err)
		require.Len(t, leads, 1)
		assert.Equal(t, "00Qxx", leads[0].ID)
	})

	t.Run("default limit", func(t *testing.T) {
		mock := &mockClient{
			queryFn: func(_ context.Context, soql string, _ any) error {
				assert.Contains(t, soql, "LIMIT 10")
				return nil
			},
		}
		leads, err := FindLeadsByEmail(context.Background(), mock, "a@b.de", 0)
		require.NoError(t, err)
		assert.Empty(t, leads)
	})

	t.Run("requires email", func(t *testing.T) {
		_, err := FindLeadsByEmail(context.Background(), &mockClient{}, "", 1)
		assert.Error(t, err)
	})

	t.Run("wraps query failure", func(t *testing.T) {
		mock := &mockClient{
			queryFn: func(_ context.Context, _ string, _ any) error {
				return errors.New("connection refused")
			},
		}
		_, err := FindLeadsByEmail(context.Background(), mock, "a@b.de", 1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "find leads by email")
	})
}

func TestMissingFields(t *testing.T) {
	desc := &SObjectDescription{Fields: []SObjectField{
		{Name: "FirstName", Createable: true},
		{Name: "LastName", Createable: true},
		{Name: "Id", Createable: false},
	}}

	missing, notCreateable := MissingFields(desc, []string{"FirstName", "Id", "MobilePhone"})
	assert.Equal(t, []string{"MobilePhone"}, missing)
	assert.Equal(t, []string{"Id"}, notCreateable)
}

func TestEscapeSoql(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"max@example.com", "max@example.com"},
		{"o'reilly@example.com", "o\\'reilly@example.com"},
		{"it's a test's case", "it\\'s a test\\'s case"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, escapeSoql(tt.input))
		})
	}
}
