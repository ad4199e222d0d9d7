// CLAUDE:SUMMARY Batch compression — collapses consecutive attr/text churn, never structural records.
package mutation

// Compress collapses runs of records that supersede each other:
//   - consecutive attr on the same (xpath, name) keep only the last,
//     with the old value carried from the first
//   - consecutive text on the same xpath keep only the last
//   - insert, remove, navigate, doc_reset are structurally significant
//     and never compressed
func Compress(records []Record) []Record {
	if len(records) <= 1 {
		return records
	}

	result := make([]Record, 0, len(records))
	for i := 0; i < len(records); i++ {
		rec := records[i]

		switch rec.Op {
		case OpAttr:
			firstOld := rec.OldValue
			j := i + 1
			for j < len(records) &&
				records[j].Op == OpAttr &&
				records[j].XPath == rec.XPath &&
				records[j].Name == rec.Name {
				rec = records[j]
				j++
			}
			rec.OldValue = firstOld
			result = append(result, rec)
			i = j - 1

		case OpText:
			firstOld := rec.OldValue
			j := i + 1
			for j < len(records) &&
				records[j].Op == OpText &&
				records[j].XPath == rec.XPath {
				rec = records[j]
				j++
			}
			rec.OldValue = firstOld
			result = append(result, rec)
			i = j - 1

		default:
			result = append(result, rec)
		}
	}
	return result
}
