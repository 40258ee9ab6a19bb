package fakeplatform

import (
	"fmt"
	"math/rand"
)

type Job struct {
	ID          string
	Title       string
	Company     string
	CompanySize string
	Location    string
	WorkModel   string
	Remote      bool
	Salary      string
	Seniority   string
	Summary     string
	Duties      []string
	ApplyLink   string
	Published   string
}

func (j Job) wire() map[string]any {
	jr := map[string]any{
		"jobTitle":             j.Title,
		"jobLocation":          j.Location,
		"workModel":            j.WorkModel,
		"isRemote":             j.Remote,
		"salaryDesc":           j.Salary,
		"jobSeniority":         j.Seniority,
		"employmentType":       "Full-time",
		"jobSummary":           j.Summary,
		"coreResponsibilities": j.Duties,
		"minYearsOfExperience": 3,
		"applyLink":            j.ApplyLink,
		"publishTimeDesc":      j.Published,
	}
	if j.ID != "" {
		jr["jobId"] = j.ID
	}
	return map[string]any{
		"jobResult":     jr,
		"companyResult": map[string]any{"companyName": j.Company, "companySize": j.CompanySize},
	}
}

var (
	titles = []string{
		"Software Engineer", "Senior Software Engineer", "Data Scientist", "Product Manager",
		"DevOps Engineer", "Site Reliability Engineer", "Backend Engineer", "Machine Learning Engineer",
	}
	companies = []string{"Acme", "Globex", "Initech", "Umbrella", "Hooli", "Stark Industries", "Wayne Enterprises"}
	locations = []string{"Austin, TX", "Remote, US", "New York, NY", "Seattle, WA", "Denver, CO"}
	models    = []string{"Onsite", "Remote", "Hybrid"}
)

// Catalog generates n deterministic postings. Every tenth posting has no
// external id so the title/org/location key path gets exercised.
func Catalog(n int, seed int64) []Job {
	r := rand.New(rand.NewSource(seed))
	out := make([]Job, 0, n)
	for i := 0; i < n; i++ {
		title := titles[r.Intn(len(titles))]
		company := companies[r.Intn(len(companies))]
		loc := locations[r.Intn(len(locations))]
		model := models[r.Intn(len(models))]
		low := 80 + r.Intn(80)

		j := Job{
			ID:          fmt.Sprintf("job-%05d", i),
			Title:       title,
			Company:     company,
			CompanySize: []string{"1-50", "51-200", "201-1000", "1000+"}[r.Intn(4)],
			Location:    loc,
			WorkModel:   model,
			Remote:      model == "Remote",
			Salary:      fmt.Sprintf("$%dK/yr - $%dK/yr", low, low+30),
			Seniority:   []string{"Mid Level", "Senior Level"}[r.Intn(2)],
			Summary:     fmt.Sprintf("<p>%s at %s working on <b>distributed systems</b>.</p>", title, company),
			Duties:      []string{"Build services", "Own on-call", "Review designs"},
			ApplyLink:   fmt.Sprintf("https://example.com/apply/%d", i),
			Published:   fmt.Sprintf("%d hours ago", 1+r.Intn(48)),
		}
		if i%10 == 9 {
			j.ID = ""
			// unique location keeps id-less postings distinct
			j.Location = fmt.Sprintf("%s #%d", loc, i)
		}
		out = append(out, j)
	}
	return out
}
