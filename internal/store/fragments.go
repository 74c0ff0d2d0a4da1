package store

// Fragment is a run of segment text covered by the same annotations
type Fragment struct {
	Start       int
	End         int
	Text        string
	Annotations []Annotation
}

// Fragments splits content at every annotation boundary. Each fragment lists
// the annotations overlapping it; offsets are in runes.
func Fragments(content string, annotations []Annotation) []Fragment {
	runes := []rune(content)
	n := len(runes)
	if n == 0 {
		return nil
	}

	cut := make([]bool, n+1)
	cut[0], cut[n] = true, true
	for _, a := range annotations {
		if a.Start > 0 && a.Start < n {
			cut[a.Start] = true
		}
		if a.End > 0 && a.End < n {
			cut[a.End] = true
		}
	}

	var out []Fragment
	start := 0
	for i := 1; i <= n; i++ {
		if !cut[i] {
			continue
		}
		f := Fragment{Start: start, End: i, Text: string(runes[start:i])}
		for _, a := range annotations {
			if a.Start < i && a.End > start {
				f.Annotations = append(f.Annotations, a)
			}
		}
		out = append(out, f)
		start = i
	}
	return out
}
