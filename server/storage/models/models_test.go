package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", CategoryOther},
		{"  ", CategoryOther},
		{"online course", CategoryOnlineCourse},
		{"WORKSHOP", CategoryWorkshop},
		{"Hackathon", "Hackathon"},
		{"  Bootcamp ", "Bootcamp"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeCategory(tt.in))
		})
	}
}

func TestEditValidate(t *testing.T) {
	issue := NewDate(2024, 1, 1)
	expiry := NewDate(2027, 1, 1)

	ok := CertificateEdit{Title: "AWS Cloud Practitioner", IssueDate: &issue, ExpiryDate: &expiry}
	assert.NoError(t, ok.Validate())

	noTitle := CertificateEdit{Title: ""}
	var verr *ValidationError
	require.ErrorAs(t, noTitle.Validate(), &verr)
	assert.Equal(t, "title", verr.Field)

	swapped := CertificateEdit{Title: "x", IssueDate: &expiry, ExpiryDate: &issue}
	require.ErrorAs(t, swapped.Validate(), &verr)
	assert.Equal(t, "expiry_date", verr.Field)

	sameDay := CertificateEdit{Title: "x", IssueDate: &issue, ExpiryDate: &issue}
	assert.NoError(t, sameDay.Validate())
}

func TestDateJSON(t *testing.T) {
	type wrap struct {
		D *Date `json:"d"`
	}
	var w wrap
	require.NoError(t, json.Unmarshal([]byte(`{"d":"2024-01-01"}`), &w))
	require.NotNil(t, w.D)
	assert.Equal(t, "2024-01-01", w.D.String())

	out, err := json.Marshal(w)
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"2024-01-01"}`, string(out))

	w = wrap{}
	require.NoError(t, json.Unmarshal([]byte(`{"d":null}`), &w))
	assert.Nil(t, w.D)

	assert.Error(t, json.Unmarshal([]byte(`{"d":"01/01/2024"}`), &w))
}

func TestCloneIsDeep(t *testing.T) {
	d := NewDate(2024, 1, 1)
	c := &Certificate{ID: "1", IssueDate: &d}
	cp := c.Clone()
	cp.IssueDate.Time = cp.IssueDate.AddDate(1, 0, 0)
	assert.Equal(t, "2024-01-01", c.IssueDate.String())
}

func TestApplyEditKeepsStorageFields(t *testing.T) {
	c := &Certificate{ID: "1", Title: "AWS Cloud Practitioner", StoragePath: "u/1.pdf", FileName: "aws.pdf"}
	c.ApplyEdit(CertificateEdit{Title: "AWS Certified Cloud Practitioner", Category: CategoryOnlineCourse})
	assert.Equal(t, "AWS Certified Cloud Practitioner", c.Title)
	assert.Equal(t, "u/1.pdf", c.StoragePath)
	assert.Equal(t, "aws.pdf", c.FileName)
}
