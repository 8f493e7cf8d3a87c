package bits

import "testing"

func TestSignExtendRoundTrip(t *testing.T) {
	cases := []struct {
		value uint64
		n     uint
	}{
		{0x7ff, 12},
		{0x800, 12},
		{0xfff, 12},
		{1, 1},
		{0, 1},
		{0xffffffff, 32},
	}
	for _, c := range cases {
		se := SignExtend(c.value, c.n)
		// Cutting the low n bits back out of the sign-extended value
		// must reproduce the original field.
		got := Cut(uint64(se), 0, c.n)
		if got != c.value {
			t.Errorf("SignExtend(%#x,%d)=%#x; Cut back = %#x, want %#x", c.value, c.n, se, got, c.value)
		}
	}
}

func TestCutReplace(t *testing.T) {
	v := uint64(0xdeadbeefcafebabe)
	field := Cut(v, 8, 16)
	if field != 0xfeba {
		t.Fatalf("Cut = %#x, want 0xfeba", field)
	}
	replaced := Replace(v, 8, 16, 0x1234)
	if Cut(replaced, 8, 16) != 0x1234 {
		t.Fatalf("Replace did not install new field")
	}
	if replaced&^(uint64(0xffff)<<8) != v&^(uint64(0xffff)<<8) {
		t.Fatalf("Replace disturbed bits outside the field")
	}
}

func TestCheck(t *testing.T) {
	v := uint64(0b1010)
	if !Check(v, 1) || !Check(v, 3) {
		t.Fatal("expected bits 1 and 3 set")
	}
	if Check(v, 0) || Check(v, 2) {
		t.Fatal("expected bits 0 and 2 clear")
	}
}

func TestLittleEndianRoundTrip(t *testing.T) {
	buf := make([]byte, 16)
	StoreU16(buf, 0, 0x1234)
	if buf[0] != 0x34 || buf[1] != 0x12 {
		t.Fatalf("StoreU16 wrong byte order: %x", buf[:2])
	}
	if LoadU16(buf, 0) != 0x1234 {
		t.Fatal("LoadU16 round trip failed")
	}

	StoreU32(buf, 4, 0xdeadbeef)
	if LoadU32(buf, 4) != 0xdeadbeef {
		t.Fatal("LoadU32 round trip failed")
	}

	StoreU64(buf, 8, 0x0102030405060708)
	if LoadU64(buf, 8) != 0x0102030405060708 {
		t.Fatal("LoadU64 round trip failed")
	}
	if buf[8] != 0x08 || buf[15] != 0x01 {
		t.Fatalf("StoreU64 wrong byte order: %x", buf[8:16])
	}
}

func TestFloatRoundTrip(t *testing.T) {
	buf := make([]byte, 8)
	StoreF32(buf, 0, 3.14159)
	if LoadF32(buf, 0) != float32(3.14159) {
		t.Fatal("F32 round trip failed")
	}
	StoreF64(buf, 0, 2.71828182845)
	if LoadF64(buf, 0) != 2.71828182845 {
		t.Fatal("F64 round trip failed")
	}
}

func TestUnalignedAccess(t *testing.T) {
	buf := make([]byte, 16)
	StoreUnaligned(buf, 1, 4, 0xcafebabe)
	if LoadUnaligned(buf, 1, 4) != 0xcafebabe {
		t.Fatal("unaligned 4-byte round trip failed")
	}
	StoreUnaligned(buf, 3, 8, 0x1122334455667788)
	if LoadUnaligned(buf, 3, 8) != 0x1122334455667788 {
		t.Fatal("unaligned 8-byte round trip failed")
	}
}
