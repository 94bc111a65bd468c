package motor

// apply executes target against the drive state. The returned command is
// one the drive could not act on yet and wants to see again next tick.
func (m *Machine) apply(target DriveState, cruise int) DriveState {
	switch m.drive {
	case DriveIdle:
		switch target {
		case DriveForward:
			m.start(DriveForwardStarting, m.stage.ForwardBrake)
		case DriveReverse:
			m.start(DriveReverseStarting, m.stage.ReverseBrake)
		}
		return DriveIdle

	case DriveForwardStarting, DriveReverseStarting:
		switch target {
		case DriveBrake:
			m.halt(DriveBrake)
			return DriveIdle
		case DriveCoast:
			m.halt(DriveCoast)
			return DriveIdle
		case m.drive.opposite():
			m.halt(DriveCoast)
			return target
		}
		m.rampStep(cruise)
		return DriveIdle

	case DriveForward, DriveReverse:
		switch target {
		case m.drive.starting():
			m.setDrive(target)
		case DriveBrake:
			m.halt(DriveBrake)
		case DriveCoast:
			m.halt(DriveCoast)
		case m.drive.opposite():
			m.halt(DriveCoast)
			return target
		}
		return DriveIdle

	case DriveBrake, DriveCoast:
		if m.ticks >= m.timing.dwell {
			m.setDrive(DriveIdle)
			m.call("coast", m.stage.Coast)
		}
		return target
	}
	return DriveIdle
}

func (m *Machine) start(s DriveState, engage func() error) {
	m.setDrive(s)
	m.call("set speed", func() error { return m.stage.SetSpeed(0) })
	m.call("engage", engage)
}

func (m *Machine) halt(s DriveState) {
	m.setDrive(s)
	if s == DriveBrake {
		m.call("brake", m.stage.Brake)
		return
	}
	m.call("coast", m.stage.Coast)
}

func (m *Machine) rampStep(cruise int) {
	next, done := m.ramp.Next(m.stage.Speed(), cruise)
	m.call("set speed", func() error { return m.stage.SetSpeed(next) })
	if done {
		m.setDrive(m.drive.steady())
	}
}
