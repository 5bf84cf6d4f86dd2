package domain

// Status de cada item de um lote.
const (
	BatchItemSuccess = "success"
	BatchItemError   = "error"
)

// BatchItemResult é o resultado independente de um item do lote.
type BatchItemResult struct {
	ID     string      `json:"id"`
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
	Code   string      `json:"code,omitempty"`
}

// BatchResult é a resposta multi-status de um lote: Successful + Failed == len(Results).
type BatchResult struct {
	Successful int               `json:"successful"`
	Failed     int               `json:"failed"`
	Results    []BatchItemResult `json:"results"`
}
