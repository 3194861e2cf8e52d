package rsp

// targetXML is the static target description served by qXfer:features:read,
// declaring architecture riscv:rv32 with two feature groups: the standard
// GPR bank and a Vortex-specific CSR extension group. The register numbers
// here (0..31, 32, 33..41) must stay in lockstep with the wire numbering in
// regs.go (regPC, firstVXCSR..lastVXCSR) and riscv.ExposedVXCSRs.
const targetXML = `<?xml version="1.0"?>
<!DOCTYPE target SYSTEM "gdb-target.dtd">
<target version="1.0">
  <architecture>riscv:rv32</architecture>
  <feature name="org.gnu.gdb.riscv.cpu">
    <reg name="zero" bitsize="32" regnum="0" type="int"/>
    <reg name="ra" bitsize="32" regnum="1" type="code_ptr"/>
    <reg name="sp" bitsize="32" regnum="2" type="data_ptr"/>
    <reg name="gp" bitsize="32" regnum="3" type="data_ptr"/>
    <reg name="tp" bitsize="32" regnum="4" type="data_ptr"/>
    <reg name="t0" bitsize="32" regnum="5" type="int"/>
    <reg name="t1" bitsize="32" regnum="6" type="int"/>
    <reg name="t2" bitsize="32" regnum="7" type="int"/>
    <reg name="s0" bitsize="32" regnum="8" type="data_ptr"/>
    <reg name="s1" bitsize="32" regnum="9" type="int"/>
    <reg name="a0" bitsize="32" regnum="10" type="int"/>
    <reg name="a1" bitsize="32" regnum="11" type="int"/>
    <reg name="a2" bitsize="32" regnum="12" type="int"/>
    <reg name="a3" bitsize="32" regnum="13" type="int"/>
    <reg name="a4" bitsize="32" regnum="14" type="int"/>
    <reg name="a5" bitsize="32" regnum="15" type="int"/>
    <reg name="a6" bitsize="32" regnum="16" type="int"/>
    <reg name="a7" bitsize="32" regnum="17" type="int"/>
    <reg name="s2" bitsize="32" regnum="18" type="int"/>
    <reg name="s3" bitsize="32" regnum="19" type="int"/>
    <reg name="s4" bitsize="32" regnum="20" type="int"/>
    <reg name="s5" bitsize="32" regnum="21" type="int"/>
    <reg name="s6" bitsize="32" regnum="22" type="int"/>
    <reg name="s7" bitsize="32" regnum="23" type="int"/>
    <reg name="s8" bitsize="32" regnum="24" type="int"/>
    <reg name="s9" bitsize="32" regnum="25" type="int"/>
    <reg name="s10" bitsize="32" regnum="26" type="int"/>
    <reg name="s11" bitsize="32" regnum="27" type="int"/>
    <reg name="t3" bitsize="32" regnum="28" type="int"/>
    <reg name="t4" bitsize="32" regnum="29" type="int"/>
    <reg name="t5" bitsize="32" regnum="30" type="int"/>
    <reg name="t6" bitsize="32" regnum="31" type="int"/>
    <reg name="pc" bitsize="32" regnum="32" type="code_ptr"/>
  </feature>
  <feature name="org.vortex.debug.csr">
    <reg name="vx_num_cores" bitsize="32" regnum="33" type="int" save-restore="no"/>
    <reg name="vx_num_warps" bitsize="32" regnum="34" type="int" save-restore="no"/>
    <reg name="vx_num_threads" bitsize="32" regnum="35" type="int" save-restore="no"/>
    <reg name="vx_core_id" bitsize="32" regnum="36" type="int" save-restore="no"/>
    <reg name="vx_warp_id" bitsize="32" regnum="37" type="int" save-restore="no"/>
    <reg name="vx_thread_id" bitsize="32" regnum="38" type="int" save-restore="no"/>
    <reg name="vx_active_warps" bitsize="32" regnum="39" type="int" save-restore="no"/>
    <reg name="vx_active_threads" bitsize="32" regnum="40" type="int" save-restore="no"/>
    <reg name="vx_local_mem_base" bitsize="32" regnum="41" type="int" save-restore="no"/>
  </feature>
</target>
`
