package viewport

// Viewport is a scroll position report from the view.
type Viewport struct {
	// ScrollTop is the offset of the visible area from the content top
	ScrollTop float64

	// Height of the visible area
	Height float64

	// ContentHeight is the full height of the rendered list, sentinel
	// included
	ContentHeight float64
}

// ScrollTrigger derives visibility from scroll reports. The sentinel is the
// last Height units of the content; it counts as visible when at least
// Threshold of it lies inside the viewport extended downward by Margin.
//
// It fires when the sentinel goes from hidden to visible, and again when
// the content grew while the sentinel stayed visible (a short page did not
// push it out of view).
type ScrollTrigger struct {
	observer

	margin    float64
	threshold float64

	visible      bool
	firedContent float64
}

// NewScrollTrigger creates a trigger. A negative margin becomes
// DefaultMargin; threshold is clamped to [0, 1].
func NewScrollTrigger(margin, threshold float64) *ScrollTrigger {
	if margin < 0 {
		margin = DefaultMargin
	}
	if threshold < 0 {
		threshold = 0
	}
	if threshold > 1 {
		threshold = 1
	}
	return &ScrollTrigger{margin: margin, threshold: threshold}
}

// Observe implements Trigger.
func (s *ScrollTrigger) Observe(sentinel Sentinel, onNearEnd func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.observe(sentinel, onNearEnd); err != nil {
		return err
	}
	s.visible = false
	s.firedContent = 0
	return nil
}

// Unobserve implements Trigger.
func (s *ScrollTrigger) Unobserve() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onNearEnd = nil
	s.visible = false
}

// Update feeds a scroll report. It calls the observer on the caller's
// goroutine when a signal fires and reports whether one did.
func (s *ScrollTrigger) Update(v Viewport) bool {
	s.mu.Lock()
	if s.onNearEnd == nil {
		s.mu.Unlock()
		return false
	}

	visible := s.intersects(v)
	fire := visible && (!s.visible || v.ContentHeight != s.firedContent)
	s.visible = visible
	if fire {
		s.firedContent = v.ContentHeight
	}
	fn := s.onNearEnd
	s.mu.Unlock()

	if fire {
		fn()
	}
	return fire
}

// Visible reports the sentinel visibility after the last Update.
func (s *ScrollTrigger) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

// intersects must be called with mu held.
func (s *ScrollTrigger) intersects(v Viewport) bool {
	top := v.ContentHeight - s.sentinel.Height
	if top < 0 {
		top = 0
	}
	bottom := v.ContentHeight
	height := bottom - top
	if height <= 0 {
		return false
	}

	bandTop := v.ScrollTop
	bandBottom := v.ScrollTop + v.Height + s.margin

	overlap := min(bottom, bandBottom) - max(top, bandTop)
	if overlap <= 0 {
		return false
	}
	return overlap/height >= s.threshold
}
