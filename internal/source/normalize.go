package source

import (
	"time"

	"jobsweep-engine/internal/domain"
	"jobsweep-engine/internal/util"
)

// Normalize turns an admitted candidate into a record. Text fields are
// cleaned, HTML summaries flattened, and compensation parsed.
func Normalize(c domain.RawCandidate, key string, attr domain.Attribution, now time.Time) domain.JobRecord {
	summary := util.HTMLText(c.Summary)
	if summary == "" {
		summary = util.HTMLText(c.Responsibilities)
	}
	return domain.JobRecord{
		Key:            key,
		ExternalID:     util.CleanText(c.ExternalID),
		Title:          util.CleanText(c.Title),
		Organization:   util.CleanText(c.Company),
		CompanySize:    util.CleanText(c.CompanySize),
		Location:       util.NormalizeLocation(c.Location),
		WorkModel:      util.WorkModel(c.WorkModel, c.Remote, c.Location),
		Seniority:      util.CleanText(c.Seniority),
		EmploymentType: util.CleanText(c.EmploymentType),
		Compensation:   domain.ParseCompensation(c.Salary),
		Summary:        summary,
		ApplyLink:      util.CleanText(c.ApplyLink),
		Published:      util.CleanText(c.Published),
		Attribution:    attr,
		CollectedAt:    now.UTC(),
	}
}
