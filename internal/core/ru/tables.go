package ru

// planKey selects one tone table. 160 MHz has no table of its own: it is the
// 80 MHz plan duplicated with a +-512 tone shift (see SubcarrierGroup).
type planKey struct {
	bw Bandwidth
	rt Type
}

// tonePlans holds the fixed subcarrier groups per (bandwidth, RU type),
// ordered by 1-based RU index. The central 26-tone RUs are split around the
// DC subcarriers, hence the two-range entries.
var tonePlans = map[planKey][][]ToneRange{
	// 20 MHz
	{BW20, RU26}: {
		{{-121, -96}},
		{{-95, -70}},
		{{-68, -43}},
		{{-42, -17}},
		{{-16, -4}, {4, 16}},
		{{17, 42}},
		{{43, 68}},
		{{70, 95}},
		{{96, 121}},
	},
	{BW20, RU52}: {
		{{-121, -70}},
		{{-68, -17}},
		{{17, 68}},
		{{70, 121}},
	},
	{BW20, RU106}: {
		{{-122, -4}},
		{{4, 122}},
	},
	{BW20, RU242}: {
		{{-122, -2}, {2, 122}},
	},

	// 40 MHz
	{BW40, RU26}: {
		{{-243, -218}},
		{{-217, -192}},
		{{-189, -164}},
		{{-163, -138}},
		{{-136, -111}},
		{{-109, -84}},
		{{-83, -58}},
		{{-55, -30}},
		{{-29, -4}},
		{{4, 29}},
		{{30, 55}},
		{{58, 83}},
		{{84, 109}},
		{{111, 136}},
		{{138, 163}},
		{{164, 189}},
		{{192, 217}},
		{{218, 243}},
	},
	{BW40, RU52}: {
		{{-243, -192}},
		{{-189, -138}},
		{{-109, -58}},
		{{-55, -4}},
		{{4, 55}},
		{{58, 109}},
		{{138, 189}},
		{{192, 243}},
	},
	{BW40, RU106}: {
		{{-243, -138}},
		{{-109, -4}},
		{{4, 109}},
		{{138, 243}},
	},
	{BW40, RU242}: {
		{{-244, -3}},
		{{3, 244}},
	},
	{BW40, RU484}: {
		{{-244, -3}, {3, 244}},
	},

	// 80 MHz
	{BW80, RU26}: {
		{{-499, -474}},
		{{-473, -448}},
		{{-445, -420}},
		{{-419, -394}},
		{{-392, -367}},
		{{-365, -340}},
		{{-339, -314}},
		{{-311, -286}},
		{{-285, -260}},
		{{-257, -232}},
		{{-231, -206}},
		{{-203, -178}},
		{{-177, -152}},
		{{-150, -125}},
		{{-123, -98}},
		{{-97, -72}},
		{{-69, -44}},
		{{-43, -18}},
		{{-16, -4}, {4, 16}},
		{{18, 43}},
		{{44, 69}},
		{{72, 97}},
		{{98, 123}},
		{{125, 150}},
		{{152, 177}},
		{{178, 203}},
		{{206, 231}},
		{{232, 257}},
		{{260, 285}},
		{{286, 311}},
		{{314, 339}},
		{{340, 365}},
		{{367, 392}},
		{{394, 419}},
		{{420, 445}},
		{{448, 473}},
		{{474, 499}},
	},
	{BW80, RU52}: {
		{{-499, -448}},
		{{-445, -394}},
		{{-365, -314}},
		{{-311, -260}},
		{{-257, -206}},
		{{-203, -152}},
		{{-123, -72}},
		{{-69, -18}},
		{{18, 69}},
		{{72, 123}},
		{{152, 203}},
		{{206, 257}},
		{{260, 311}},
		{{314, 365}},
		{{394, 445}},
		{{448, 499}},
	},
	{BW80, RU106}: {
		{{-499, -394}},
		{{-365, -260}},
		{{-257, -152}},
		{{-123, -18}},
		{{18, 123}},
		{{152, 257}},
		{{260, 365}},
		{{394, 499}},
	},
	{BW80, RU242}: {
		{{-500, -259}},
		{{-258, -17}},
		{{17, 258}},
		{{259, 500}},
	},
	{BW80, RU484}: {
		{{-500, -17}},
		{{17, 500}},
	},
	{BW80, RU996}: {
		{{-500, -3}, {3, 500}},
	},
}

// central26Indices lists, per bandwidth, the 1-based 26-tone RU indices that
// sit in the middle of a 20 MHz segment (or of the whole channel) and are
// therefore left over by any equal-size partition in larger units.
var central26Indices = map[Bandwidth][]int{
	BW20: {5},
	BW40: {5, 14},
	BW80: {5, 14, 19, 24, 33},
}

// the secondary 80 MHz half of a 160 MHz channel is the 80 MHz plan shifted
// up by this many tones; the primary half is shifted down by the same amount.
const toneShift160 = 512
