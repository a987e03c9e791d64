package cases

// Loader port (interface untuk parsing file import jadi row mentah)
type Loader interface {
	Rows(filename string, data []byte) ([]map[string]any, error)
}
