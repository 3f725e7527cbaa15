package validate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"
)

// Turn is one line of the generated conversation.
type Turn struct {
	TurnID       int64    `json:"turn_id"`
	Speaker      string   `json:"speaker"`
	RelativeTime string   `json:"relative_time"`
	Text         string   `json:"text"`
	EvidenceEIDs []string `json:"evidence_eids"`
}

type Problem struct {
	Problem           string   `json:"problem"`
	StatusAtDischarge string   `json:"status_at_discharge"`
	SupportingEIDs    []string `json:"supporting_eids"`
}

type TestResult struct {
	Test           string   `json:"test"`
	Result         string   `json:"result"`
	RelativeTime   string   `json:"relative_time"`
	SupportingEIDs []string `json:"supporting_eids"`
}

type Treatment struct {
	TreatmentOrMed string   `json:"treatment_or_med"`
	Details        string   `json:"details"`
	SupportingEIDs []string `json:"supporting_eids"`
}

type Disposition struct {
	DischargeLocation string   `json:"discharge_location"`
	SupportingEIDs    []string `json:"supporting_eids"`
}

type Summary struct {
	RelativeDischargeTime string       `json:"relative_discharge_time"`
	OneParagraphSummary   string       `json:"one_paragraph_summary"`
	ProblemList           []Problem    `json:"problem_list"`
	KeyTestsAndResults    []TestResult `json:"key_tests_and_results"`
	TreatmentsAndMeds     []Treatment  `json:"treatments_and_meds"`
	Disposition           Disposition  `json:"disposition"`
}

// Response is a model reply that passed the schema check.
type Response struct {
	Conversation []Turn  `json:"conversation"`
	Summary      Summary `json:"end_of_admission_summary"`
}

// AllowedSpeakers is the closed set of speaker tags.
var AllowedSpeakers = map[string]bool{
	"PATIENT":   true,
	"ATTENDING": true,
	"RESIDENT":  true,
	"NURSE":     true,
	"CONSULT":   true,
}

var (
	topKeys     = []string{"conversation", "end_of_admission_summary"}
	turnKeys    = []string{"evidence_eids", "relative_time", "speaker", "text", "turn_id"}
	summaryKeys = []string{
		"disposition", "key_tests_and_results", "one_paragraph_summary",
		"problem_list", "relative_discharge_time", "treatments_and_meds",
	}
	problemKeys     = []string{"problem", "status_at_discharge", "supporting_eids"}
	testKeys        = []string{"relative_time", "result", "supporting_eids", "test"}
	treatmentKeys   = []string{"details", "supporting_eids", "treatment_or_med"}
	dispositionKeys = []string{"discharge_location", "supporting_eids"}
)

// Parse decodes text as a single JSON object. Numbers stay json.Number.
func Parse(text string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("invalid JSON: extra data after the top-level value")
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, errors.New("top-level response must be a JSON object")
	}
	return obj, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sameKeys(m map[string]any, want []string) bool {
	return slices.Equal(sortedKeys(m), want)
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asStrings(v any) ([]string, bool) {
	list, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func asInt(v any) (int64, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	i, err := n.Int64()
	return i, err == nil
}

// CheckSchema verifies doc has exactly the response shape and returns it
// typed. The first violation is reported; positions are 1-based.
func CheckSchema(doc map[string]any) (*Response, error) {
	var extra, missing []string
	for _, k := range sortedKeys(doc) {
		if !slices.Contains(topKeys, k) {
			extra = append(extra, k)
		}
	}
	for _, k := range topKeys {
		if _, ok := doc[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(extra) > 0 {
		return nil, fmt.Errorf("unexpected top-level keys: %q", extra)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing top-level keys: %q", missing)
	}

	resp := &Response{}
	turns, ok := doc["conversation"].([]any)
	if !ok || len(turns) == 0 {
		return nil, errors.New("conversation must be a non-empty list")
	}
	for i, raw := range turns {
		turn, err := checkTurn(i+1, raw)
		if err != nil {
			return nil, err
		}
		resp.Conversation = append(resp.Conversation, turn)
	}

	summary, err := checkSummary(doc["end_of_admission_summary"])
	if err != nil {
		return nil, err
	}
	resp.Summary = summary
	return resp, nil
}

func checkTurn(pos int, raw any) (Turn, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return Turn{}, fmt.Errorf("conversation[%d] must be an object", pos)
	}
	if !sameKeys(obj, turnKeys) {
		return Turn{}, fmt.Errorf("conversation[%d] keys mismatch: expected %q, got %q", pos, turnKeys, sortedKeys(obj))
	}
	id, ok := asInt(obj["turn_id"])
	if !ok {
		return Turn{}, fmt.Errorf("conversation[%d].turn_id must be an integer", pos)
	}
	if id != int64(pos) {
		return Turn{}, fmt.Errorf("conversation[%d].turn_id must be sequential starting at 1 (expected %d)", pos, pos)
	}
	speaker, ok := asString(obj["speaker"])
	if !ok || !AllowedSpeakers[speaker] {
		return Turn{}, fmt.Errorf("conversation[%d].speaker invalid: %v", pos, obj["speaker"])
	}
	relTime, ok := asString(obj["relative_time"])
	if !ok {
		return Turn{}, fmt.Errorf("conversation[%d].relative_time must be a string", pos)
	}
	text, ok := asString(obj["text"])
	if !ok {
		return Turn{}, fmt.Errorf("conversation[%d].text must be a string", pos)
	}
	eids, ok := asStrings(obj["evidence_eids"])
	if !ok {
		return Turn{}, fmt.Errorf("conversation[%d].evidence_eids must be a list of strings", pos)
	}
	return Turn{TurnID: id, Speaker: speaker, RelativeTime: relTime, Text: text, EvidenceEIDs: eids}, nil
}

const summaryPath = "end_of_admission_summary"

func checkSummary(raw any) (Summary, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return Summary{}, fmt.Errorf("%s must be an object", summaryPath)
	}
	if !sameKeys(obj, summaryKeys) {
		return Summary{}, fmt.Errorf("%s keys mismatch: expected %q, got %q", summaryPath, summaryKeys, sortedKeys(obj))
	}

	var s Summary
	if s.RelativeDischargeTime, ok = asString(obj["relative_discharge_time"]); !ok {
		return Summary{}, fmt.Errorf("%s.relative_discharge_time must be a string", summaryPath)
	}
	if s.OneParagraphSummary, ok = asString(obj["one_paragraph_summary"]); !ok {
		return Summary{}, fmt.Errorf("%s.one_paragraph_summary must be a string", summaryPath)
	}

	problems, err := objectList(obj["problem_list"], summaryPath+".problem_list", problemKeys)
	if err != nil {
		return Summary{}, err
	}
	for _, p := range problems {
		s.ProblemList = append(s.ProblemList, Problem{
			Problem:           p.str["problem"],
			StatusAtDischarge: p.str["status_at_discharge"],
			SupportingEIDs:    p.eids,
		})
	}

	tests, err := objectList(obj["key_tests_and_results"], summaryPath+".key_tests_and_results", testKeys)
	if err != nil {
		return Summary{}, err
	}
	for _, t := range tests {
		s.KeyTestsAndResults = append(s.KeyTestsAndResults, TestResult{
			Test:           t.str["test"],
			Result:         t.str["result"],
			RelativeTime:   t.str["relative_time"],
			SupportingEIDs: t.eids,
		})
	}

	treatments, err := objectList(obj["treatments_and_meds"], summaryPath+".treatments_and_meds", treatmentKeys)
	if err != nil {
		return Summary{}, err
	}
	for _, t := range treatments {
		s.TreatmentsAndMeds = append(s.TreatmentsAndMeds, Treatment{
			TreatmentOrMed: t.str["treatment_or_med"],
			Details:        t.str["details"],
			SupportingEIDs: t.eids,
		})
	}

	disp, ok := obj["disposition"].(map[string]any)
	if !ok {
		return Summary{}, fmt.Errorf("%s.disposition must be an object", summaryPath)
	}
	if !sameKeys(disp, dispositionKeys) {
		return Summary{}, fmt.Errorf("%s.disposition keys mismatch", summaryPath)
	}
	if s.Disposition.DischargeLocation, ok = asString(disp["discharge_location"]); !ok {
		return Summary{}, fmt.Errorf("%s.disposition.discharge_location must be a string", summaryPath)
	}
	if s.Disposition.SupportingEIDs, ok = asStrings(disp["supporting_eids"]); !ok {
		return Summary{}, fmt.Errorf("%s.disposition.supporting_eids must be a list of strings", summaryPath)
	}

	// Empty lists stay [] in summary.json.
	if s.ProblemList == nil {
		s.ProblemList = []Problem{}
	}
	if s.KeyTestsAndResults == nil {
		s.KeyTestsAndResults = []TestResult{}
	}
	if s.TreatmentsAndMeds == nil {
		s.TreatmentsAndMeds = []Treatment{}
	}
	return s, nil
}

type citedObject struct {
	str  map[string]string
	eids []string
}

// objectList checks a list of objects with exactly keys, where
// supporting_eids is a list of strings and every other value is a string.
func objectList(raw any, path string, keys []string) ([]citedObject, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%s must be a list", path)
	}
	out := make([]citedObject, 0, len(list))
	for i, item := range list {
		pos := i + 1
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s[%d] must be an object", path, pos)
		}
		if !sameKeys(obj, keys) {
			return nil, fmt.Errorf("%s[%d] keys mismatch", path, pos)
		}
		co := citedObject{str: make(map[string]string, len(keys)-1)}
		for _, k := range keys {
			if k == "supporting_eids" {
				if co.eids, ok = asStrings(obj[k]); !ok {
					return nil, fmt.Errorf("%s[%d].supporting_eids must be a list of strings", path, pos)
				}
				continue
			}
			if co.str[k], ok = asString(obj[k]); !ok {
				return nil, fmt.Errorf("%s[%d].%s must be a string", path, pos, k)
			}
		}
		out = append(out, co)
	}
	return out, nil
}
