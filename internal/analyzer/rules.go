package analyzer

import (
	"regexp"

	"github.com/YKarmar/JobMail/internal/types"
)

const (
	UnknownCompany  = "Unknown Company"
	UnknownPosition = "Unknown Position"
)

// jobKeywords gate full classification. Plain substring match.
var jobKeywords = []string{
	"application",
	"applied",
	"position",
	"role",
	"job",
	"interview",
	"candidate",
}

// Display names that say nothing about the employer.
var genericSenderNames = []string{"no-reply", "noreply", "careers", "jobs", "recruiting", "talent"}

// Mail providers whose domain is never the employer.
var personalMailDomains = []string{"gmail", "yahoo", "outlook", "hotmail"}

type jobSource struct {
	fragment string
	name     string
}

// Checked in order; the first fragment contained in the sender wins.
var jobSources = []jobSource{
	{"linkedin.com", "LinkedIn"},
	{"indeed.com", "Indeed"},
	{"glassdoor.com", "Glassdoor"},
	{"lever.co", "Lever"},
	{"greenhouse.io", "Greenhouse"},
	{"workday.com", "Workday"},
	{"jobs.ashbyhq.com", "Ashby"},
	{"smartrecruiters.com", "SmartRecruiters"},
	{"icims.com", "iCIMS"},
	{"myworkdayjobs.com", "Workday"},
}

type statusRule struct {
	status   types.Status
	patterns []*regexp.Regexp
}

// statusRules are evaluated top to bottom. Rejected must stay ahead of
// Applied: rejection mails routinely repeat "thank you for applying".
var statusRules = []statusRule{
	{types.StatusRejected, compileAll(
		`we (have |)decided (to |)not (to |)move forward`,
		`we (will |)won't be (moving|proceeding) forward`,
		`unfortunately`,
		`not selected`,
		`position has been filled`,
		`we've decided to pursue other candidates`,
		`after careful consideration`,
	)},
	{types.StatusInterviewing, compileAll(
		`schedule (a |an |your )interview`,
		`interview (invitation|request)`,
		`like to invite you`,
		`next (round|step|stage)`,
		`phone screen`,
		`technical assessment`,
	)},
	{types.StatusOffer, compileAll(
		`pleased to offer`,
		`offer (letter|of employment)`,
		`congratulations`,
		`welcome to the team`,
	)},
	{types.StatusApplied, compileAll(
		`(received|got) your application`,
		`thank you for (applying|your (interest|application))`,
		`application (received|confirmed|submitted)`,
	)},
}

var (
	senderNamePattern   = regexp.MustCompile(`^"?([^"<]+)"?\s*<`)
	senderDomainPattern = regexp.MustCompile(`@([a-zA-Z0-9-]+)\.(com|io|co|org)`)
)

// positionPatterns run against the subject in this order.
var positionPatterns = compileAll(
	`application for[:\s]+(.+?)(?:\s+at|\s+-|\s*$)`,
	`re:\s*(.+?)\s+(?:application|position|role)`,
	`(.+?)\s+(?:application|position|role)\s+(?:received|confirmed|status)`,
	`your application[:\s]+(.+?)(?:\s+at|\s+-|\s*$)`,
)

func compileAll(exprs ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		res = append(res, regexp.MustCompile(`(?i)`+e))
	}
	return res
}
