package dataset

import "fmt"

// EmptyDatasetError indicates there is nothing to analyze: no dataset, no rows, or no columns.
type EmptyDatasetError struct {
	Name string
}

func (e *EmptyDatasetError) Error() string {
	if e == nil || e.Name == "" {
		return "dataset is empty: load data with at least one row and one column"
	}
	return fmt.Sprintf("dataset %q is empty: load data with at least one row and one column", e.Name)
}
