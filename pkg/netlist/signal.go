package netlist

// Signals is an ordered scratch list of pins used while one resolver runs.
// It does not own the pins it lists.
type Signals []PinID

// Width returns the number of signals
func (s Signals) Width() int {
	return len(s)
}

// Append returns the list with pins added at the end
func (s Signals) Append(pins ...PinID) Signals {
	return append(s, pins...)
}

// Combine concatenates lists, consuming them: every source list is reset
// so its pins are only reachable through the result
func Combine(lists ...*Signals) Signals {
	var out Signals
	for _, l := range lists {
		out = append(out, *l...)
		*l = nil
	}
	return out
}

// CombineCopy concatenates lists without consuming them; the result holds
// fresh fanout pins reading the same nets
func (nl *Netlist) CombineCopy(lists ...Signals) (Signals, error) {
	var out Signals
	for _, l := range lists {
		for _, pin := range l {
			cp, err := nl.CopyPin(pin)
			if err != nil {
				return nil, err
			}
			out = append(out, cp)
		}
	}
	return out, nil
}

// ReleaseAll frees every floating pin in the list
func (nl *Netlist) ReleaseAll(s Signals) error {
	for _, pin := range s {
		if err := nl.Release(pin); err != nil {
			return err
		}
	}
	return nil
}

// SignalNets returns the nets read by the listed pins
func (nl *Netlist) SignalNets(s Signals) []NetID {
	nets := make([]NetID, len(s))
	for i, pin := range s {
		nets[i] = NoNet
		if p := nl.Pin(pin); p != nil {
			nets[i] = p.Net
		}
	}
	return nets
}
