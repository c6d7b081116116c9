// Package directory implements the two-level, prefix-sharded index: a
// fixed-size array of (mutex, optional block) slots, one per live prefix
// value, with the core operations (insert, lookup, delete, get_block,
// get_range, get_window_around) that resolve a number to its shard and
// drive the block underneath. No operation ever holds more than one
// shard's lock at a time.
package directory

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cbinding/numdir/internal/block"
	"github.com/cbinding/numdir/internal/dirstatus"
	"github.com/cbinding/numdir/internal/digits"
	"github.com/cbinding/numdir/internal/presence"
	"github.com/cbinding/numdir/internal/slotset"
	"github.com/cbinding/numdir/internal/snapshot"
)

// Config carries the core's construction knobs, read by the outer host
// from configuration and passed in at startup.
type Config struct {
	// PrefixLen is the number of leading digits used to select a shard.
	PrefixLen int
	// MaxNumberLen is the longest number or alias accepted.
	MaxNumberLen int
	// GrowQuantum is the block grow/shrink step.
	GrowQuantum int
	// FilterExpectedItems sizes the advisory presence filter.
	FilterExpectedItems uint
	// FilterFalsePositiveRate sizes the advisory presence filter.
	FilterFalsePositiveRate float64
}

// DefaultConfig matches the defaults named in the core's design.
func DefaultConfig() Config {
	return Config{
		PrefixLen:               6,
		MaxNumberLen:            15,
		GrowQuantum:             10,
		FilterExpectedItems:     1 << 20,
		FilterFalsePositiveRate: 0.01,
	}
}

// NumberAlias is one (number, alias) pair, the element type returned by
// GetWindowAround.
type NumberAlias struct {
	Number string
	Alias  string
}

type slot struct {
	mu  sync.Mutex
	blk *block.Block
}

// Directory is the fixed-size, lock-per-shard index. It is allocated once
// at startup and torn down only on process exit.
type Directory struct {
	cfg       Config
	offset    int
	entrySize int64

	slots    []slot
	occupied *slotset.Set
	filter   *presence.Filter

	liveBytes atomic.Int64
}

func pow10(n int) int {
	p := 1
	for i := 0; i < n; i++ {
		p *= 10
	}
	return p
}

// New allocates a directory of N = 10^PrefixLen - OFFSET slots, all
// initially empty.
func New(cfg Config) *Directory {
	offset := pow10(cfg.PrefixLen - 1)
	n := pow10(cfg.PrefixLen) - offset

	return &Directory{
		cfg:       cfg,
		offset:    offset,
		entrySize: int64(block.EntrySize),
		slots:     make([]slot, n),
		occupied:  slotset.New(uint(n)),
		filter:    presence.New(cfg.FilterExpectedItems, cfg.FilterFalsePositiveRate),
	}
}

func (d *Directory) validateLen(s string) error {
	if len(s) > d.cfg.MaxNumberLen {
		return dirstatus.Illegal
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return dirstatus.Illegal
		}
	}
	return nil
}

// prefixIndexOf returns parse_decimal(number[0:PrefixLen]) - OFFSET.
func (d *Directory) prefixIndexOf(number string) (int, error) {
	if len(number) < d.cfg.PrefixLen {
		return 0, dirstatus.TooShort
	}

	value := 0
	for i := 0; i < d.cfg.PrefixLen; i++ {
		c := number[i]
		if c < '0' || c > '9' {
			return 0, dirstatus.Illegal
		}
		value = value*10 + int(c-'0')
	}

	if value < d.offset {
		return 0, dirstatus.Illegal
	}
	idx := value - d.offset
	if idx >= len(d.slots) {
		return 0, dirstatus.Illegal
	}
	return idx, nil
}

func (d *Directory) fullNumber(slotIdx int, postfixPacked []byte) (string, error) {
	postfix, err := digits.Unpack(postfixPacked)
	if err != nil {
		return "", err
	}
	prefixValue := slotIdx + d.offset
	return fmt.Sprintf("%0*d%s", d.cfg.PrefixLen, prefixValue, postfix), nil
}

// Insert stores alias under number, creating the shard's block on first
// use. Re-inserting an existing number overwrites its alias; this is
// idempotent in intent and always succeeds.
func (d *Directory) Insert(number, alias string) error {
	if err := d.validateLen(number); err != nil {
		return err
	}
	if err := d.validateLen(alias); err != nil {
		return err
	}

	idx, err := d.prefixIndexOf(number)
	if err != nil {
		return err
	}

	postfixPacked, err := digits.Pack(number[d.cfg.PrefixLen:], block.PostfixCap)
	if err != nil {
		return dirstatus.EncodingError
	}
	aliasPacked, err := digits.Pack(alias, block.AliasCap)
	if err != nil {
		return dirstatus.EncodingError
	}

	s := &d.slots[idx]
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.blk == nil {
		s.blk = block.New(d.cfg.GrowQuantum)
	}

	beforeCap := s.blk.Cap()
	s.blk.Insert(postfixPacked, aliasPacked)
	if afterCap := s.blk.Cap(); afterCap != beforeCap {
		d.liveBytes.Add(int64(afterCap-beforeCap) * d.entrySize)
	}

	d.occupied.Mark(uint(idx))
	d.filter.Add(number)

	return nil
}

// Lookup returns the alias stored for number, or dirstatus.AbsentOk if no
// such entry exists.
func (d *Directory) Lookup(number string) (string, error) {
	if err := d.validateLen(number); err != nil {
		return "", err
	}

	idx, err := d.prefixIndexOf(number)
	if err != nil {
		return "", err
	}

	postfixPacked, err := digits.Pack(number[d.cfg.PrefixLen:], block.PostfixCap)
	if err != nil {
		return "", dirstatus.EncodingError
	}

	s := &d.slots[idx]
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.blk == nil {
		return "", dirstatus.AbsentOk
	}

	i, found := s.blk.Search(postfixPacked)
	if !found {
		return "", dirstatus.AbsentOk
	}

	entry := s.blk.EntryAt(i)
	alias, err := digits.Unpack(entry.Alias())
	if err != nil {
		return "", dirstatus.EncodingError
	}
	return alias, nil
}

// Delete removes number's entry, if any, dropping the block from its slot
// if that was its last entry. A missing key is not an error; it reports
// dirstatus.AbsentOk.
func (d *Directory) Delete(number string) error {
	if err := d.validateLen(number); err != nil {
		return err
	}

	idx, err := d.prefixIndexOf(number)
	if err != nil {
		return err
	}

	postfixPacked, err := digits.Pack(number[d.cfg.PrefixLen:], block.PostfixCap)
	if err != nil {
		return dirstatus.EncodingError
	}

	s := &d.slots[idx]
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.blk == nil {
		return dirstatus.AbsentOk
	}

	beforeCap := s.blk.Cap()
	removed, empty := s.blk.Remove(postfixPacked)
	if !removed {
		return dirstatus.AbsentOk
	}
	if afterCap := s.blk.Cap(); afterCap != beforeCap {
		d.liveBytes.Add(int64(afterCap-beforeCap) * d.entrySize)
	}

	if empty {
		s.blk = nil
		d.occupied.Unmark(uint(idx))
	}

	return nil
}

// GetBlock returns a deep, disjoint copy of the block backing number's
// shard, or dirstatus.AbsentOk if the shard is empty.
func (d *Directory) GetBlock(number string) (*block.Block, error) {
	if err := d.validateLen(number); err != nil {
		return nil, err
	}

	idx, err := d.prefixIndexOf(number)
	if err != nil {
		return nil, err
	}

	s := &d.slots[idx]
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.blk == nil {
		return nil, dirstatus.AbsentOk
	}
	return s.blk.Clone(), nil
}

// GetRange expands number's postfix to [lo, hi] by appending postfixRangeLen
// padding digits — '0' for lo, '9' for hi — directly to number, then returns
// the entries of the single shard selected by number's prefix whose postfix
// falls in that range. This mirrors nlkup_get_range in the original
// implementation, which appends pfx_len digits to the whole number rather
// than padding out to a target postfix length; padding that would run past
// MaxNumberLen is clamped the same way the original clamps at
// MAX_NBR_LENGTH instead of failing.
func (d *Directory) GetRange(number string, postfixRangeLen int) (*block.Block, error) {
	if err := d.validateLen(number); err != nil {
		return nil, err
	}

	idx, err := d.prefixIndexOf(number)
	if err != nil {
		return nil, err
	}
	if postfixRangeLen < 0 {
		return nil, dirstatus.Illegal
	}

	seed := number[d.cfg.PrefixLen:]
	maxPostfixLen := d.cfg.MaxNumberLen - d.cfg.PrefixLen

	padLen := postfixRangeLen
	if len(seed)+padLen > maxPostfixLen {
		padLen = maxPostfixLen - len(seed)
	}
	if padLen < 0 {
		padLen = 0
	}

	loPacked, err := digits.Pack(seed+strings.Repeat("0", padLen), block.PostfixCap)
	if err != nil {
		return nil, dirstatus.EncodingError
	}
	hiPacked, err := digits.Pack(seed+strings.Repeat("9", padLen), block.PostfixCap)
	if err != nil {
		return nil, dirstatus.EncodingError
	}

	s := &d.slots[idx]
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.blk == nil {
		return block.New(d.cfg.GrowQuantum), nil
	}

	loIdx, _ := s.blk.Search(loPacked)
	hiIdx, hiFound := s.blk.Search(hiPacked)
	if !hiFound {
		hiIdx--
	}

	if loIdx > hiIdx {
		return block.New(d.cfg.GrowQuantum), nil
	}
	return s.blk.CopyRange(loIdx, hiIdx)
}

type pivotLoc struct {
	slot int
	idx  int
}

// GetWindowAround returns up to before+1+after entries centered on number
// (or the nearest existing entry), in ascending global order, holding at
// most one shard lock at any instant. If fewer entries were available than
// requested, the partial list is returned alongside dirstatus.NotEnoughData.
func (d *Directory) GetWindowAround(number string, before, after int) ([]NumberAlias, error) {
	if before < 0 || after < 0 {
		return nil, dirstatus.Illegal
	}
	if err := d.validateLen(number); err != nil {
		return nil, err
	}

	pivotSlot, err := d.prefixIndexOf(number)
	if err != nil {
		return nil, err
	}

	seedPostfix := ""
	if len(number) > d.cfg.PrefixLen {
		seedPostfix = number[d.cfg.PrefixLen:]
	}
	seedPacked, err := digits.Pack(seedPostfix, block.PostfixCap)
	if err != nil {
		return nil, dirstatus.EncodingError
	}

	requested := before + 1 + after

	pivot, locked, err := d.locatePivot(pivotSlot, seedPacked)
	if err != nil {
		return nil, err
	}
	defer func() {
		if locked != nil {
			locked.mu.Unlock()
		}
	}()

	blk := locked.blk
	out := make([]NumberAlias, 0, requested)

	lo := pivot.idx - before
	if lo < 0 {
		lo = 0
	}
	hi := pivot.idx + after
	if hi > blk.Len()-1 {
		hi = blk.Len() - 1
	}

	for i := lo; i <= pivot.idx; i++ {
		na, err := d.entryToPair(pivot.slot, blk.EntryAt(i))
		if err != nil {
			return nil, err
		}
		out = append(out, na)
	}
	before -= pivot.idx - lo

	for i := pivot.idx + 1; i <= hi; i++ {
		na, err := d.entryToPair(pivot.slot, blk.EntryAt(i))
		if err != nil {
			return nil, err
		}
		out = append(out, na)
	}
	after -= hi - pivot.idx

	locked.mu.Unlock()
	locked = nil

	for sidx := pivot.slot - 1; before > 0 && sidx >= 0; sidx-- {
		if !d.occupied.Test(uint(sidx)) {
			continue
		}
		sb := &d.slots[sidx]
		sb.mu.Lock()
		if sb.blk == nil || sb.blk.Len() == 0 {
			sb.mu.Unlock()
			continue
		}
		n := before
		if n > sb.blk.Len() {
			n = sb.blk.Len()
		}
		start := sb.blk.Len() - n
		for i := start; i < sb.blk.Len(); i++ {
			na, err := d.entryToPair(sidx, sb.blk.EntryAt(i))
			if err != nil {
				sb.mu.Unlock()
				return nil, err
			}
			out = append(out, na)
		}
		sb.mu.Unlock()
		before -= n
	}

	for sidx := pivot.slot + 1; after > 0 && sidx < len(d.slots); sidx++ {
		if !d.occupied.Test(uint(sidx)) {
			continue
		}
		sf := &d.slots[sidx]
		sf.mu.Lock()
		if sf.blk == nil || sf.blk.Len() == 0 {
			sf.mu.Unlock()
			continue
		}
		n := after
		if n > sf.blk.Len() {
			n = sf.blk.Len()
		}
		for i := 0; i < n; i++ {
			na, err := d.entryToPair(sidx, sf.blk.EntryAt(i))
			if err != nil {
				sf.mu.Unlock()
				return nil, err
			}
			out = append(out, na)
		}
		sf.mu.Unlock()
		after -= n
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })

	if len(out) < requested {
		return out, dirstatus.NotEnoughData
	}
	return out, nil
}

func (d *Directory) entryToPair(slotIdx int, e block.Entry) (NumberAlias, error) {
	num, err := d.fullNumber(slotIdx, e.Postfix())
	if err != nil {
		return NumberAlias{}, dirstatus.EncodingError
	}
	alias, err := digits.Unpack(e.Alias())
	if err != nil {
		return NumberAlias{}, dirstatus.EncodingError
	}
	return NumberAlias{Number: num, Alias: alias}, nil
}

// locatePivot finds the window's pivot entry starting from startSlot,
// returning the locked slot holding it. The caller must unlock it.
func (d *Directory) locatePivot(startSlot int, seedPacked []byte) (pivotLoc, *slot, error) {
	s := &d.slots[startSlot]
	s.mu.Lock()
	if s.blk != nil && s.blk.Len() > 0 {
		i, found := s.blk.Search(seedPacked)
		if found {
			return pivotLoc{startSlot, i}, s, nil
		}
		// Miss, but the start shard itself holds entries straddling the
		// key: use the clamped insertion point as the pivot rather than
		// walking away to a neighbor shard and losing this data.
		if i >= s.blk.Len() {
			i = s.blk.Len() - 1
		}
		return pivotLoc{startSlot, i}, s, nil
	}
	s.mu.Unlock()

	if nxt, ok := d.occupied.NextSet(uint(startSlot + 1)); ok {
		ns := int(nxt)
		s2 := &d.slots[ns]
		s2.mu.Lock()
		if s2.blk != nil && s2.blk.Len() > 0 {
			return pivotLoc{ns, 0}, s2, nil
		}
		s2.mu.Unlock()
	}

	if startSlot > 0 {
		if prv, ok := d.occupied.PreviousSet(uint(startSlot - 1)); ok {
			ps := int(prv)
			s2 := &d.slots[ps]
			s2.mu.Lock()
			if s2.blk != nil && s2.blk.Len() > 0 {
				return pivotLoc{ps, s2.blk.Len() - 1}, s2, nil
			}
			s2.mu.Unlock()
		}
	}

	return pivotLoc{}, nil, dirstatus.NotFound
}

// MayContain is an advisory, probabilistic pre-check: false is a
// definitive "not present"; true means the authoritative Lookup should
// still be consulted.
func (d *Directory) MayContain(number string) bool {
	return d.filter.MayContain(number)
}

// LiveBytes returns the directory's current in-use byte count, updated
// only at block grow/shrink capacity transitions.
func (d *Directory) LiveBytes() int64 {
	return d.liveBytes.Load()
}

// NumSlots implements snapshot.SlotSource.
func (d *Directory) NumSlots() int { return len(d.slots) }

// SlotPrefix implements snapshot.SlotSource.
func (d *Directory) SlotPrefix(i int) int { return i + d.offset }

// SlotSnapshot implements snapshot.SlotSource.
func (d *Directory) SlotSnapshot(i int) (capacity, used int, entries []block.Entry, err error) {
	s := &d.slots[i]
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.blk == nil {
		return 0, 0, nil, nil
	}
	capacity, used, entries = s.blk.Raw()
	return capacity, used, entries, nil
}

// RestoreSlot implements snapshot.SlotSource. The caller must guarantee no
// concurrent mutator is active on the directory during restore.
func (d *Directory) RestoreSlot(i int, capacity, used int, entries []block.Entry) error {
	s := &d.slots[i]
	s.mu.Lock()
	defer s.mu.Unlock()

	if used == 0 {
		if s.blk != nil {
			d.liveBytes.Add(-int64(s.blk.Cap()) * d.entrySize)
		}
		s.blk = nil
		d.occupied.Unmark(uint(i))
		return nil
	}

	blk, err := block.FromRaw(d.cfg.GrowQuantum, capacity, used, entries)
	if err != nil {
		return dirstatus.CorruptSnapshot
	}

	if s.blk != nil {
		d.liveBytes.Add(-int64(s.blk.Cap()) * d.entrySize)
	}
	s.blk = blk
	d.occupied.Mark(uint(i))
	d.liveBytes.Add(int64(capacity) * d.entrySize)
	return nil
}

// Snapshot writes a deterministic binary dump of the whole directory to
// path, by way of a temp file and atomic rename.
func (d *Directory) Snapshot(path string) error {
	return snapshot.Write(d, path)
}

// Restore replaces the directory's contents with the slot records read
// from path. Restore is not safe to call concurrently with any mutator.
func (d *Directory) Restore(path string) error {
	if err := snapshot.Restore(d, path); err != nil {
		return err
	}
	d.filter.Reset(d.cfg.FilterExpectedItems, d.cfg.FilterFalsePositiveRate)
	d.rebuildFilter()
	return nil
}

func (d *Directory) rebuildFilter() {
	for i := range d.slots {
		s := &d.slots[i]
		s.mu.Lock()
		if s.blk != nil {
			for j := 0; j < s.blk.Len(); j++ {
				e := s.blk.EntryAt(j)
				if num, err := d.fullNumber(i, e.Postfix()); err == nil {
					d.filter.Add(num)
				}
			}
		}
		s.mu.Unlock()
	}
}
