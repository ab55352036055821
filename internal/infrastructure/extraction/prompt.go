package extraction

import (
	"fmt"

	"github.com/greengrowth/taxagent/internal/core/domain"
)

// maxDocumentChars bounds the document text sent to the model so a single
// dense PDF cannot blow past the provider's context limit.
const maxDocumentChars = 10000

const extractionInstructions = `You are a tax document analysis assistant with expertise in IRS forms.
Extract tax information from the document below and return ONLY a valid JSON object, no markdown, no commentary.

Required JSON shape:
{
    "document_type": "W-2" | "1099-INT" | "1099-NEC" | "1099-MISC" | "1099-DIV" | "Other",
    "taxpayer_name": "Full name exactly as shown on the document",
    "ssn": "XXX-XX-XXXX format, or empty string if not present",
    "filing_status": "single" | "married_filing_jointly" | "married_filing_separately" | "head_of_household",
    "wages": 0.00,
    "interest_income": 0.00,
    "other_income": 0.00,
    "federal_withholding": 0.00,
    "payer_name": "Name of the paying organization, or empty string",
    "employer_ein": "XX-XXXXXXX format, or empty string",
    "confidence": 0.90
}

Form-specific rules:
- W-2: wages = Box 1, federal_withholding = Box 2, employer_ein = Box b.
- 1099-INT: interest_income = Box 1, federal_withholding = Box 4, payer_name from the payer section.
- 1099-NEC: other_income = Box 1 (nonemployee compensation), federal_withholding = Box 4.
- 1099-MISC: other_income = Box 3, federal_withholding = Box 4.
- 1099-DIV: other_income = Box 1a (total ordinary dividends), federal_withholding = Box 4.

General rules:
- Monetary values must be JSON numbers, never strings with $ or commas.
- If a field is not present on the document, use 0.00 for money and "" for text.
- Preserve the taxpayer name exactly, including capitalization and punctuation.
- confidence reflects how clearly the fields could be read, from 0 to 1.`

// BuildPrompt assembles the field-extraction prompt for one document. The
// caller's document-type hint, when known, is stated ahead of the text so the
// model applies the matching box rules.
func BuildPrompt(text string, hint domain.DocumentType) string {
	snippet := text
	if len(snippet) > maxDocumentChars {
		snippet = snippet[:maxDocumentChars] + "... [truncated]"
	}

	prompt := extractionInstructions
	if hint != "" && hint != domain.DocTypeOther {
		prompt += fmt.Sprintf("\n\nThe uploader labeled this document as %s; verify against the content.", hint)
	}
	return prompt + "\n\nDocument text:\n" + snippet
}

// BuildReformulationPrompt asks the model to repair a structurally wrong
// response. Used once per document before giving up.
func BuildReformulationPrompt(raw string) string {
	snippet := raw
	if len(snippet) > maxDocumentChars {
		snippet = snippet[:maxDocumentChars]
	}
	return `Your previous answer did not match the required JSON shape.
Rewrite it as a single valid JSON object with exactly these keys:
document_type, taxpayer_name, ssn, filing_status, wages, interest_income, other_income, federal_withholding, payer_name, employer_ein, confidence.
Monetary values must be JSON numbers. Return ONLY the JSON object.

Previous answer:
` + snippet
}
