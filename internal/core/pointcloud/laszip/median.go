package laszip

// streamingMedian5 tracks the median of the last five values with the
// alternating insertion scheme the LASzip predictors rely on.
type streamingMedian5 struct {
	values [5]int32
	high   bool
}

func (m *streamingMedian5) init() {
	m.values = [5]int32{}
	m.high = true
}

func (m *streamingMedian5) add(v int32) {
	if m.high {
		if v < m.values[2] {
			m.values[4] = m.values[3]
			m.values[3] = m.values[2]
			switch {
			case v < m.values[0]:
				m.values[2] = m.values[1]
				m.values[1] = m.values[0]
				m.values[0] = v
			case v < m.values[1]:
				m.values[2] = m.values[1]
				m.values[1] = v
			default:
				m.values[2] = v
			}
		} else {
			if v < m.values[3] {
				m.values[4] = m.values[3]
				m.values[3] = v
			} else {
				m.values[4] = v
			}
			m.high = false
		}
	} else {
		if m.values[2] < v {
			m.values[0] = m.values[1]
			m.values[1] = m.values[2]
			switch {
			case m.values[4] < v:
				m.values[2] = m.values[3]
				m.values[3] = m.values[4]
				m.values[4] = v
			case m.values[3] < v:
				m.values[2] = m.values[3]
				m.values[3] = v
			default:
				m.values[2] = v
			}
		} else {
			if m.values[1] < v {
				m.values[0] = m.values[1]
				m.values[1] = v
			} else {
				m.values[0] = v
			}
			m.high = true
		}
	}
}

func (m *streamingMedian5) get() int32 {
	return m.values[2]
}
