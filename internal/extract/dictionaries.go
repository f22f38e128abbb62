package extract

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// serviceKeywords maps keywords and phrases found in message text to the
// requested-service enum. Order matters: first match wins, so the more
// specific entries come first.
var serviceKeywords = []struct {
	service  ServiceType
	keywords []string
}{
	{ServiceFreelanceVisa, []string{"freelance visa", "freelancer visa", "freelance permit", "freelancing"}},
	{ServiceFamilyVisa, []string{"family visa", "wife visa", "husband visa", "spouse visa", "dependent visa", "sponsor my family", "sponsor my wife", "sponsor my husband", "kids visa", "children visa"}},
	{ServiceGoldenVisa, []string{"golden visa", "10 year visa", "10-year visa", "long term residence"}},
	{ServiceVisitVisa, []string{"visit visa", "tourist visa", "visa on arrival", "30 day visa", "60 day visa", "90 day visa"}},
	{ServiceEmploymentVisa, []string{"employment visa", "work visa", "work permit", "labour card", "labor card"}},
	{ServiceTradeLicenseRenewal, []string{"license renewal", "licence renewal", "renew my license", "renew my licence", "renew trade license", "trade license renewal"}},
	{ServiceBusinessSetup, []string{"business setup", "company setup", "company formation", "start a business", "start a company", "open a company", "mainland license", "freezone license", "free zone license", "trade license", "llc"}},
	{ServiceEmiratesID, []string{"emirates id", "eid renewal", "emirates id renewal", "id card renewal"}},
	{ServiceMedicalInsurance, []string{"medical insurance", "health insurance", "insurance policy", "insurance renewal"}},
	{ServiceAttestation, []string{"attestation", "attest my", "certificate attestation", "mofa stamp"}},
}

// demonyms maps lower-cased nationality words to their canonical form.
var demonyms = map[string]string{
	"indian":        "Indian",
	"pakistani":     "Pakistani",
	"bangladeshi":   "Bangladeshi",
	"filipino":      "Filipino",
	"filipina":      "Filipino",
	"egyptian":      "Egyptian",
	"jordanian":     "Jordanian",
	"lebanese":      "Lebanese",
	"syrian":        "Syrian",
	"sudanese":      "Sudanese",
	"moroccan":      "Moroccan",
	"tunisian":      "Tunisian",
	"algerian":      "Algerian",
	"emirati":       "Emirati",
	"saudi":         "Saudi",
	"omani":         "Omani",
	"kuwaiti":       "Kuwaiti",
	"bahraini":      "Bahraini",
	"qatari":        "Qatari",
	"yemeni":        "Yemeni",
	"iraqi":         "Iraqi",
	"iranian":       "Iranian",
	"turkish":       "Turkish",
	"british":       "British",
	"irish":         "Irish",
	"french":        "French",
	"german":        "German",
	"italian":       "Italian",
	"spanish":       "Spanish",
	"portuguese":    "Portuguese",
	"dutch":         "Dutch",
	"russian":       "Russian",
	"ukrainian":     "Ukrainian",
	"american":      "American",
	"canadian":      "Canadian",
	"australian":    "Australian",
	"chinese":       "Chinese",
	"japanese":      "Japanese",
	"korean":        "Korean",
	"indonesian":    "Indonesian",
	"malaysian":     "Malaysian",
	"thai":          "Thai",
	"vietnamese":    "Vietnamese",
	"nepali":        "Nepali",
	"nepalese":      "Nepali",
	"sri lankan":    "Sri Lankan",
	"afghan":        "Afghan",
	"nigerian":      "Nigerian",
	"kenyan":        "Kenyan",
	"ethiopian":     "Ethiopian",
	"south african": "South African",
	"ghanaian":      "Ghanaian",
	"ugandan":       "Ugandan",
	"brazilian":     "Brazilian",
	"mexican":       "Mexican",
	"colombian":     "Colombian",
	"argentinian":   "Argentinian",
}

// countryDemonyms maps country names appearing after "from" to a demonym.
var countryDemonyms = map[string]string{
	"india":           "Indian",
	"pakistan":        "Pakistani",
	"bangladesh":      "Bangladeshi",
	"philippines":     "Filipino",
	"the philippines": "Filipino",
	"egypt":           "Egyptian",
	"jordan":          "Jordanian",
	"lebanon":         "Lebanese",
	"syria":           "Syrian",
	"sudan":           "Sudanese",
	"morocco":         "Moroccan",
	"uk":              "British",
	"england":         "British",
	"britain":         "British",
	"france":          "French",
	"germany":         "German",
	"italy":           "Italian",
	"spain":           "Spanish",
	"russia":          "Russian",
	"ukraine":         "Ukrainian",
	"usa":             "American",
	"america":         "American",
	"canada":          "Canadian",
	"australia":       "Australian",
	"china":           "Chinese",
	"japan":           "Japanese",
	"indonesia":       "Indonesian",
	"malaysia":        "Malaysian",
	"thailand":        "Thai",
	"vietnam":         "Vietnamese",
	"nepal":           "Nepali",
	"sri lanka":       "Sri Lankan",
	"afghanistan":     "Afghan",
	"nigeria":         "Nigerian",
	"kenya":           "Kenyan",
	"ethiopia":        "Ethiopian",
	"brazil":          "Brazilian",
	"turkey":          "Turkish",
	"iran":            "Iranian",
	"iraq":            "Iraqi",
}

// nameStoplist holds capitalized bigrams that look like person names but are
// not. Compared lower-cased.
var nameStoplist = map[string]struct{}{
	"abu dhabi":         {},
	"ras al":            {},
	"al khaimah":        {},
	"umm al":            {},
	"al quwain":         {},
	"golden visa":       {},
	"emirates id":       {},
	"visit visa":        {},
	"family visa":       {},
	"freelance visa":    {},
	"employment visa":   {},
	"work permit":       {},
	"trade license":     {},
	"business setup":    {},
	"medical insurance": {},
	"health insurance":  {},
	"good morning":      {},
	"good afternoon":    {},
	"good evening":      {},
	"thank you":         {},
	"best regards":      {},
	"kind regards":      {},
	"united arab":       {},
	"arab emirates":     {},
	"free zone":         {},
}

// dictOverrides is the YAML shape accepted by LoadOverrides. Entries extend
// the built-in tables; they never remove anything.
type dictOverrides struct {
	Services []struct {
		Type     string   `yaml:"type"`
		Keywords []string `yaml:"keywords"`
	} `yaml:"services"`
	Demonyms map[string]string `yaml:"demonyms"`
	Stoplist []string          `yaml:"stoplist"`
}

// LoadOverrides applies dictionary extensions from a YAML file to the
// extractor. Unknown service types are accepted as-is; they surface as the
// raw enum value configured in the file.
func (e *Extractor) LoadOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var overrides dictOverrides
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return err
	}

	for _, svc := range overrides.Services {
		keywords := make([]string, 0, len(svc.Keywords))
		for _, kw := range svc.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" {
				keywords = append(keywords, kw)
			}
		}
		if len(keywords) == 0 {
			continue
		}
		e.services = append(e.services, serviceEntry{
			service:  ServiceType(strings.ToUpper(strings.TrimSpace(svc.Type))),
			keywords: keywords,
		})
	}

	for word, canonical := range overrides.Demonyms {
		e.demonyms[strings.ToLower(strings.TrimSpace(word))] = canonical
	}

	for _, phrase := range overrides.Stoplist {
		e.stoplist[strings.ToLower(strings.TrimSpace(phrase))] = struct{}{}
	}

	return nil
}
