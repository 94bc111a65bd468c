package motor

// sequence advances the action sequencer and returns the drive target
// for this tick. Without an action of its own it passes cmd through.
func (m *Machine) sequence(cmd DriveState, events Event) DriveState {
	if events.Has(EventStopAction) {
		m.setAction(ActionStopping)
		return DriveCoast
	}

	switch m.action {
	case ActionIdle:
		switch {
		case events.Has(EventStartCleaning):
			m.retries = 0
			m.setAction(ActionCleaningForward)
			return DriveForward
		case events.Has(EventStartHoming):
			m.setAction(ActionHomingReverse)
			return DriveReverse
		}

	case ActionHomingReverse:
		if events.Has(HomingLimits) || m.switchOverdue(DriveReverse) {
			m.setAction(ActionHomingForward)
			return DriveForward
		}

	case ActionHomingForward:
		if m.ranFor(DriveForward, m.timing.homingForward) {
			m.setAction(ActionStopping)
			return DriveCoast
		}

	case ActionCleaningForward:
		if events.Has(CleaningLimits) || m.switchOverdue(DriveForward) {
			m.setAction(ActionCleaningReverse)
			return DriveReverse
		}

	case ActionCleaningReverse:
		if m.retries < m.timing.retries {
			if m.ranFor(DriveReverse, m.timing.retryReverse) {
				m.retries++
				m.logger.Infof("cleaning retry %d/%d", m.retries, m.timing.retries)
				m.setAction(ActionCleaningForward)
				return DriveForward
			}
		} else if m.ranFor(DriveReverse, m.timing.settleReverse) {
			m.retries = 0
			m.setAction(ActionCleaningForward2)
			return DriveForward
		}

	case ActionCleaningForward2:
		if m.ranFor(DriveForward, m.timing.levelForward) {
			m.setAction(ActionStopping)
			return DriveCoast
		}

	case ActionStopping:
		if m.drive == DriveIdle {
			m.setAction(ActionIdle)
		}
		return DriveIdle
	}
	return cmd
}

func (m *Machine) ranFor(drive DriveState, ticks int) bool {
	return m.drive == drive && m.ticks >= ticks
}

func (m *Machine) switchOverdue(drive DriveState) bool {
	if m.timing.switchTimeout <= 0 || !m.ranFor(drive, m.timing.switchTimeout) {
		return false
	}
	m.logger.Warnf("%s: no limit switch after %d ticks, advancing", m.action, m.ticks)
	return true
}
