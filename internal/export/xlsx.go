// Package export writes stored leads to spreadsheets for operators.
package export

import (
	"context"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/NonStopMan/vamo-heatos/internal/funnel"
	"github.com/NonStopMan/vamo-heatos/internal/model"
	"github.com/NonStopMan/vamo-heatos/internal/store"
)

// SheetName is the name of the single sheet written by WriteXLSX.
const SheetName = "Leads"

// pageSize is the ListLeads page size used by Collect.
const pageSize = 500

// Header is the first row of the exported sheet.
var Header = []string{
	"ID", "External ID", "Stage", "First Name", "Last Name", "Email", "Phone",
	"Postal Code", "City", "CRM Status", "CRM Retries", "CRM Last Error",
	"CRM Last Attempt", "CRM Synced At", "Created At",
}

// Lister is the subset of store.Store used by Collect.
type Lister interface {
	ListLeads(ctx context.Context, filter store.LeadFilter) ([]model.Lead, error)
}

// Collect pages through ListLeads until exhausted. filter.Limit caps the total;
// zero means no cap.
func Collect(ctx context.Context, l Lister, filter store.LeadFilter) ([]model.Lead, error) {
	total := filter.Limit
	var out []model.Lead
	for {
		page := store.LeadFilter{Status: filter.Status, Limit: pageSize, Offset: filter.Offset + len(out)}
		if total > 0 && total-len(out) < pageSize {
			page.Limit = total - len(out)
		}

		leads, err := l.ListLeads(ctx, page)
		if err != nil {
			return nil, eris.Wrap(err, "export: list leads")
		}
		out = append(out, leads...)

		if len(leads) < page.Limit || (total > 0 && len(out) >= total) {
			return out, nil
		}
	}
}

// WriteXLSX writes leads as a single-sheet workbook to w.
func WriteXLSX(w io.Writer, leads []model.Lead) error {
	f, err := build(leads)
	if err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write xlsx")
	}
	return nil
}

// SaveXLSX writes leads to the file at path.
func SaveXLSX(path string, leads []model.Lead) error {
	f, err := build(leads)
	if err != nil {
		return err
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save xlsx %s", path)
	}
	return nil
}

func build(leads []model.Lead) (*xlsx.File, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return nil, eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range Header {
		header.AddCell().SetString(h)
	}

	for i := range leads {
		writeLead(sheet.AddRow(), &leads[i])
	}
	return f, nil
}

func writeLead(row *xlsx.Row, l *model.Lead) {
	var (
		stage string
		info  model.ContactInformation
		addr  model.Address
	)
	// An undecodable payload still gets a row with its sync state.
	if p, err := l.DecodePayload(); err == nil {
		stage = string(funnel.Classify(p))
		if p.Contact != nil {
			if p.Contact.ContactInformation != nil {
				info = *p.Contact.ContactInformation
			}
			if p.Contact.Address != nil {
				addr = *p.Contact.Address
			}
		}
	}

	row.AddCell().SetString(l.ID)
	row.AddCell().SetString(deref(l.ExternalID))
	row.AddCell().SetString(stage)
	row.AddCell().SetString(info.FirstName)
	row.AddCell().SetString(info.LastName)
	row.AddCell().SetString(info.Email)
	row.AddCell().SetString(info.Phone)
	row.AddCell().SetString(deref(addr.PostalCode))
	row.AddCell().SetString(deref(addr.City))
	row.AddCell().SetString(string(l.CRMStatus))
	row.AddCell().SetInt(l.CRMRetries)
	row.AddCell().SetString(deref(l.CRMLastError))
	setTime(row.AddCell(), l.CRMLastAttemptAt)
	setTime(row.AddCell(), l.CRMSyncedAt)
	row.AddCell().SetDateTime(l.CreatedAt)
}

func setTime(c *xlsx.Cell, t *time.Time) {
	if t == nil {
		c.SetString("")
		return
	}
	c.SetDateTime(*t)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
