package guildmodels

//IDSet is an ordered set of IDs. It is stored as a plain list so that persisted records stay easy to diff.
type IDSet []string

//Has returns true if id is in the set
func (s IDSet) Has(id string) bool {
	for _, v := range s {
		if v == id {
			return true
		}
	}
	return false
}

//Add appends id unless it is already present, returning false in that case
func (s *IDSet) Add(id string) bool {
	if s.Has(id) {
		return false
	}
	*s = append(*s, id)
	return true
}

//Remove deletes id from the set, returning false if it was not present
func (s *IDSet) Remove(id string) bool {
	for i, v := range *s {
		if v == id {
			*s = append((*s)[:i], (*s)[i+1:]...)
			return true
		}
	}
	return false
}

//HasAny returns true if any of ids is in the set
func (s IDSet) HasAny(ids []string) bool {
	for _, id := range ids {
		if s.Has(id) {
			return true
		}
	}
	return false
}

//Clone returns a copy which shares no storage with s
func (s IDSet) Clone() IDSet {
	if s == nil {
		return nil
	}
	return append(IDSet(nil), s...)
}
