package domain

// DefaultParamSet is the reserved parameter-set key consulted when no
// candidate set contains an argument.
const DefaultParamSet = "default"

// ParamSets maps a parameter-set key to argument-name/value pairs.
type ParamSets map[string]map[string]any

// Clone returns a deep copy of the parameter sets.
func (p ParamSets) Clone() ParamSets {
	out := make(ParamSets, len(p))
	for key, set := range p {
		out[key] = cloneProperties(set)
	}
	return out
}

// Merge returns a copy of p with every argument of overlay set on top.
func (p ParamSets) Merge(overlay ParamSets) ParamSets {
	out := p.Clone()
	for key, set := range overlay {
		if out[key] == nil {
			out[key] = make(map[string]any, len(set))
		}
		for name, v := range set {
			out[key][name] = cloneValue(v)
		}
	}
	return out
}
