package raster

// Stack is an ordered collection of same-shape slices indexed by tag.
// Every slice shares the stack's bounds, resolution, and CRS.
type Stack struct {
	Tags   []string
	Slices []*Grid
	Res    Resolution
	Bounds Bounds
	CRS    string
	NoData *float64
}

// Shape returns the per-slice grid dimensions.
func (s *Stack) Shape() (width, height int) {
	if len(s.Slices) == 0 {
		return 0, 0
	}
	return s.Slices[0].Width(), s.Slices[0].Height()
}

// Len returns the number of slices.
func (s *Stack) Len() int { return len(s.Slices) }

// Slice returns the grid for a tag, or nil when the tag is absent.
func (s *Stack) Slice(tag string) *Grid {
	for i, t := range s.Tags {
		if t == tag {
			return s.Slices[i]
		}
	}
	return nil
}

// NewStack combines tagged frames into a stack. Frames carrying the same
// tag (overlapping tiles captured at the same acquisition) are first
// collapsed into one slice through Merge; distinct tags are kept in
// first-occurrence order. Callers that need chronological order must
// pre-sort their input. All resulting slices must share shape, resolution,
// and CRS; the first offending tag is named in the returned error.
func NewStack(frames []*Frame, opts MergeOptions) (*Stack, error) {
	if len(frames) == 0 {
		return nil, ErrEmptyInput
	}

	// Group by tag, preserving first-occurrence order.
	order := make([]string, 0, len(frames))
	groups := make(map[string][]*Frame, len(frames))
	for _, f := range frames {
		if _, seen := groups[f.Tag]; !seen {
			order = append(order, f.Tag)
		}
		groups[f.Tag] = append(groups[f.Tag], f)
	}

	st := &Stack{
		Tags:   make([]string, 0, len(order)),
		Slices: make([]*Grid, 0, len(order)),
	}
	for i, tag := range order {
		m, err := Merge(groups[tag], opts)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			st.Res = m.Res
			st.Bounds = m.Bounds
			st.CRS = m.CRS
			st.NoData = m.NoData
		} else {
			if m.CRS != st.CRS {
				return nil, &CRSMismatchError{Want: st.CRS, Got: m.CRS, Where: tag}
			}
			if !sameResolution(m.Res, st.Res) {
				return nil, &ResolutionMismatchError{Want: st.Res, Got: m.Res, Where: tag}
			}
			w, h := st.Shape()
			if m.Grid.Width() != w || m.Grid.Height() != h {
				return nil, &ShapeMismatchError{
					Tag:        tag,
					WantWidth:  w,
					WantHeight: h,
					GotWidth:   m.Grid.Width(),
					GotHeight:  m.Grid.Height(),
				}
			}
		}
		st.Tags = append(st.Tags, tag)
		st.Slices = append(st.Slices, m.Grid)
	}
	return st, nil
}
