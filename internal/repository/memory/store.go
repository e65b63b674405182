package memory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Freeeeeet/appointment_service/internal/model"
	"github.com/Freeeeeet/appointment_service/internal/repository"
)

type state struct {
	slots        map[int64]model.AgendaSlot
	appointments map[int64]model.Appointment
}

func (s *state) clone() *state {
	c := &state{
		slots:        make(map[int64]model.AgendaSlot, len(s.slots)),
		appointments: make(map[int64]model.Appointment, len(s.appointments)),
	}
	for id, slot := range s.slots {
		c.slots[id] = slot
	}
	for id, a := range s.appointments {
		c.appointments[id] = copyAppointment(a)
	}
	return c
}

// Store хранилище в памяти для локального запуска и тестов.
// Транзакция работает на копии состояния и подменяет его при коммите.
type Store struct {
	mu     *sync.Mutex
	locked bool // true внутри InTx, мьютекс уже захвачен
	st     *state
	seq    *atomic.Int64
	now    func() time.Time

	failAfter int
	failErr   error
	writes    *int // счётчик записей текущей транзакции
}

// NewStore создаёт пустое хранилище
func NewStore() *Store {
	return &Store{
		mu:  &sync.Mutex{},
		st:  &state{slots: map[int64]model.AgendaSlot{}, appointments: map[int64]model.Appointment{}},
		seq: &atomic.Int64{},
		now: time.Now,
	}
}

// FailWritesAfter заставляет n+1-ю запись внутри транзакции вернуть err
func (s *Store) FailWritesAfter(n int, err error) {
	s.lock()
	defer s.unlock()
	s.failAfter = n
	s.failErr = err
}

func (s *Store) lock() {
	if !s.locked {
		s.mu.Lock()
	}
}

func (s *Store) unlock() {
	if !s.locked {
		s.mu.Unlock()
	}
}

func (s *Store) Agendas() repository.AgendaStore {
	return agendaStore{s}
}

func (s *Store) Appointments() repository.AppointmentStore {
	return appointmentStore{s}
}

// InTx выполняет fn над копией состояния, копия становится текущей только при успехе
func (s *Store) InTx(ctx context.Context, fn func(tx repository.Store) error) error {
	s.lock()
	defer s.unlock()

	writes := 0
	tx := &Store{
		mu:        s.mu,
		locked:    true,
		st:        s.st.clone(),
		seq:       s.seq,
		now:       s.now,
		failAfter: s.failAfter,
		failErr:   s.failErr,
		writes:    &writes,
	}

	if err := fn(tx); err != nil {
		return err
	}

	s.st = tx.st
	return nil
}

func (s *Store) write() error {
	if s.writes == nil || s.failErr == nil {
		return nil
	}
	if *s.writes >= s.failAfter {
		return s.failErr
	}
	*s.writes++
	return nil
}

func copyAppointment(a model.Appointment) model.Appointment {
	if a.SlotID != nil {
		id := *a.SlotID
		a.SlotID = &id
	}
	return a
}

type agendaStore struct{ s *Store }

func (r agendaStore) list(match func(model.AgendaSlot) bool) []*model.AgendaSlot {
	var slots []*model.AgendaSlot
	for _, slot := range r.s.st.slots {
		if match(slot) {
			slot := slot
			slots = append(slots, &slot)
		}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].ID < slots[j].ID })
	return slots
}

func (r agendaStore) GetAll(ctx context.Context) ([]*model.AgendaSlot, error) {
	r.s.lock()
	defer r.s.unlock()
	return r.list(func(model.AgendaSlot) bool { return true }), nil
}

func (r agendaStore) GetByID(ctx context.Context, id int64) (*model.AgendaSlot, error) {
	r.s.lock()
	defer r.s.unlock()
	slot, ok := r.s.st.slots[id]
	if !ok {
		return nil, nil
	}
	return &slot, nil
}

func (r agendaStore) GetByDoctorID(ctx context.Context, doctorID int64) ([]*model.AgendaSlot, error) {
	r.s.lock()
	defer r.s.unlock()
	return r.list(func(slot model.AgendaSlot) bool { return slot.DoctorID == doctorID }), nil
}

func (r agendaStore) Create(ctx context.Context, slot *model.AgendaSlot) (*model.AgendaSlot, error) {
	r.s.lock()
	defer r.s.unlock()
	if err := r.s.write(); err != nil {
		return nil, err
	}
	created := *slot
	created.ID = r.s.seq.Add(1)
	created.CreatedAt = r.s.now()
	created.UpdatedAt = created.CreatedAt
	r.s.st.slots[created.ID] = created
	return &created, nil
}

func (r agendaStore) Update(ctx context.Context, id int64, slot *model.AgendaSlot) (*model.AgendaSlot, error) {
	r.s.lock()
	defer r.s.unlock()
	current, ok := r.s.st.slots[id]
	if !ok {
		return nil, nil
	}
	if err := r.s.write(); err != nil {
		return nil, err
	}
	updated := *slot
	updated.ID = id
	updated.CreatedAt = current.CreatedAt
	updated.UpdatedAt = r.s.now()
	r.s.st.slots[id] = updated
	return &updated, nil
}

func (r agendaStore) Delete(ctx context.Context, id int64) error {
	r.s.lock()
	defer r.s.unlock()
	if err := r.s.write(); err != nil {
		return err
	}
	delete(r.s.st.slots, id)

	// как ON DELETE SET NULL у appointments.slot_id
	for appointmentID, a := range r.s.st.appointments {
		if a.SlotID != nil && *a.SlotID == id {
			a.SlotID = nil
			r.s.st.appointments[appointmentID] = a
		}
	}
	return nil
}

type appointmentStore struct{ s *Store }

func (r appointmentStore) list(match func(model.Appointment) bool) []*model.Appointment {
	var appointments []*model.Appointment
	for _, a := range r.s.st.appointments {
		if match(a) {
			a := copyAppointment(a)
			appointments = append(appointments, &a)
		}
	}
	sort.Slice(appointments, func(i, j int) bool { return appointments[i].ID < appointments[j].ID })
	return appointments
}

func (r appointmentStore) GetAll(ctx context.Context) ([]*model.Appointment, error) {
	r.s.lock()
	defer r.s.unlock()
	return r.list(func(model.Appointment) bool { return true }), nil
}

func (r appointmentStore) GetByID(ctx context.Context, id int64) (*model.Appointment, error) {
	r.s.lock()
	defer r.s.unlock()
	a, ok := r.s.st.appointments[id]
	if !ok {
		return nil, nil
	}
	a = copyAppointment(a)
	return &a, nil
}

func (r appointmentStore) GetByDoctorID(ctx context.Context, doctorID int64) ([]*model.Appointment, error) {
	r.s.lock()
	defer r.s.unlock()
	return r.list(func(a model.Appointment) bool { return a.DoctorID == doctorID }), nil
}

func (r appointmentStore) GetByPatientID(ctx context.Context, patientID int64) ([]*model.Appointment, error) {
	r.s.lock()
	defer r.s.unlock()
	return r.list(func(a model.Appointment) bool { return a.PatientID == patientID }), nil
}

func (r appointmentStore) Create(ctx context.Context, a *model.Appointment) (*model.Appointment, error) {
	r.s.lock()
	defer r.s.unlock()
	if err := r.s.write(); err != nil {
		return nil, err
	}
	created := copyAppointment(*a)
	created.ID = r.s.seq.Add(1)
	created.CreatedAt = r.s.now()
	created.UpdatedAt = created.CreatedAt
	r.s.st.appointments[created.ID] = created
	out := copyAppointment(created)
	return &out, nil
}

func (r appointmentStore) Update(ctx context.Context, id int64, a *model.Appointment) (*model.Appointment, error) {
	r.s.lock()
	defer r.s.unlock()
	current, ok := r.s.st.appointments[id]
	if !ok {
		return nil, nil
	}
	if err := r.s.write(); err != nil {
		return nil, err
	}
	updated := copyAppointment(*a)
	updated.ID = id
	updated.CreatedAt = current.CreatedAt
	updated.UpdatedAt = r.s.now()
	r.s.st.appointments[id] = updated
	out := copyAppointment(updated)
	return &out, nil
}

func (r appointmentStore) Delete(ctx context.Context, id int64) error {
	r.s.lock()
	defer r.s.unlock()
	if err := r.s.write(); err != nil {
		return err
	}
	delete(r.s.st.appointments, id)
	return nil
}

var _ repository.Store = (*Store)(nil)
