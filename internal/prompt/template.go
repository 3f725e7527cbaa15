package prompt

// Speakers is the closed set of turn speakers the task block allows.
var Speakers = []string{"PATIENT", "ATTENDING", "RESIDENT", "NURSE", "CONSULT"}

const systemMessage = `You are simulating a realistic inpatient conversation between clinicians and a patient over one hospital admission.
The following rules are mandatory:

1) State only facts present in the EHR packet. Never invent diagnoses, symptoms, results, medications, procedures, timelines or outcomes.
2) Cite every clinically factual statement with the packet's EIDs (for example "Evidence: [LAB#000123, RAD#000004]").
3) When the packet does not contain a fact, say it is not documented or not known.
4) Keep the conversation chronological and cover the whole admission, from arrival to discharge.
5) Express time only relative to admission (for example "H+03:15" or "HospitalDay2 09:40"). Never mention calendar dates or years.
6) Discharge notes are retrospective summaries. Use them for coherence but do not reveal outcomes before they happen in the timeline.
7) Reply with valid JSON that matches the output schema in the user message exactly, with no extra keys.`

const taskBlock = `Write a multi-turn inpatient conversation for this admission.

Requirements:
- The discharge note text in notes.discharge must shape the conversation and must be cited wherever it is used.
- The conversation must agree medically and temporally with the structured data (labs, orders, service changes, radiology).
- Use speakers typical of an inpatient stay: PATIENT, ATTENDING, RESIDENT, NURSE (optional), CONSULT (optional).
- Do not recite the discharge summary as dialogue. Use it to decide what happened.

Evidence:
- Each turn lists the EIDs supporting its medical content.
- A purely social turn (a greeting, for example) may use an empty list.

Output JSON schema (match exactly):
{
  "conversation": [
    {
      "turn_id": integer (starts at 1),
      "speaker": "PATIENT" | "ATTENDING" | "RESIDENT" | "NURSE" | "CONSULT",
      "relative_time": string,
      "text": string,
      "evidence_eids": [string, ...]
    }
  ],
  "end_of_admission_summary": {
    "relative_discharge_time": string,
    "one_paragraph_summary": string,
    "problem_list": [
      {
        "problem": string,
        "status_at_discharge": string,
        "supporting_eids": [string, ...]
      }
    ],
    "key_tests_and_results": [
      {
        "test": string,
        "result": string,
        "relative_time": string,
        "supporting_eids": [string, ...]
      }
    ],
    "treatments_and_meds": [
      {
        "treatment_or_med": string,
        "details": string,
        "supporting_eids": [string, ...]
      }
    ],
    "disposition": {
      "discharge_location": string,
      "supporting_eids": [string, ...]
    }
  }
}`

const repairBlock = `<<REPAIR>>
The previous reply was not valid JSON or did not match the required schema.
Reply again with valid JSON that matches the schema exactly. No prose, markdown or comments.
<<END_REPAIR>>`
